// internal/infra/database/postgres_activity_repository.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"agency_lifecycle/internal/domain/activity"
)

// ActivityRepository appends to the activities table. Inside a transaction each
// insert runs under a savepoint so a failure doesn't poison the caller's work.
type ActivityRepository struct {
	q    querier
	inTx bool
}

func (r *ActivityRepository) Record(ctx context.Context, e *activity.Event) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(e.Metadata); err != nil {
			return fmt.Errorf("error encoding activity metadata: %w", err)
		}
	}

	if !r.inTx {
		return r.insert(ctx, e, metadata)
	}
	if _, err := r.q.ExecContext(ctx, `SAVEPOINT activity_record`); err != nil {
		return fmt.Errorf("error creating activity savepoint: %w", err)
	}
	if err := r.insert(ctx, e, metadata); err != nil {
		if _, rbErr := r.q.ExecContext(ctx, `ROLLBACK TO SAVEPOINT activity_record`); rbErr != nil {
			return fmt.Errorf("%w (savepoint rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if _, err := r.q.ExecContext(ctx, `RELEASE SAVEPOINT activity_record`); err != nil {
		return fmt.Errorf("error releasing activity savepoint: %w", err)
	}
	return nil
}

func (r *ActivityRepository) insert(ctx context.Context, e *activity.Event, metadata []byte) error {
	query := `INSERT INTO activities (id, tenant_id, client_id, user_id, event_type, description, metadata, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
              RETURNING created_at`
	var createdAt any
	if !e.CreatedAt.IsZero() {
		createdAt = e.CreatedAt
	}
	err := r.q.QueryRowContext(ctx, query,
		e.ID, e.TenantID, e.ClientID, e.UserID, e.Type, e.Description, nullJSON(metadata), createdAt,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("error recording activity: %w", translate(err))
	}
	return nil
}

func (r *ActivityRepository) ListByClient(ctx context.Context, tenantID, clientID string) ([]*activity.Event, error) {
	query := `SELECT id, tenant_id, client_id, user_id, event_type, description, metadata, created_at
              FROM activities
              WHERE tenant_id = $1 AND client_id = $2
              ORDER BY created_at, id`
	rows, err := r.q.QueryContext(ctx, query, tenantID, clientID)
	if err != nil {
		return nil, fmt.Errorf("error querying activities by client: %w", err)
	}
	defer rows.Close()

	events := make([]*activity.Event, 0)
	for rows.Next() {
		var (
			e   activity.Event
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ClientID, &e.UserID, &e.Type, &e.Description, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning activity row: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Metadata); err != nil {
				return nil, fmt.Errorf("error decoding activity metadata for %s: %w", e.ID, err)
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	return events, nil
}

func nullJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
