// internal/infra/database/postgres_policy_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agency_lifecycle/internal/domain/policy"

	"github.com/lib/pq" // For pq.Array
)

const policyColumns = `id, tenant_id, client_id, policy_number, carrier, policy_type, status,
       start_date, end_date, premium, coverage_amount, deductible, created_at, updated_at`

type PolicyRepository struct {
	q    querier
	inTx bool
}

func (r *PolicyRepository) Create(ctx context.Context, p *policy.Policy) error {
	query := `INSERT INTO policies (id, tenant_id, client_id, policy_number, carrier, policy_type, status,
                                   start_date, end_date, premium, coverage_amount, deductible)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
              RETURNING created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		p.ID, p.TenantID, p.ClientID, p.PolicyNumber, p.Carrier, p.Type, p.Status,
		nullDate(p.StartDate), nullDate(p.EndDate), p.Premium, p.CoverageAmount, p.Deductible,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating policy: %w", translate(err))
	}
	return nil
}

func (r *PolicyRepository) GetByID(ctx context.Context, tenantID, id string) (*policy.Policy, error) {
	return r.get(ctx, tenantID, id, "")
}

func (r *PolicyRepository) GetForUpdate(ctx context.Context, tenantID, id string) (*policy.Policy, error) {
	return r.get(ctx, tenantID, id, lockClause(r.inTx))
}

func (r *PolicyRepository) get(ctx context.Context, tenantID, id, lock string) (*policy.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE tenant_id = $1 AND id = $2` + lock
	p, err := scanPolicy(r.q.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, policy.ErrNotFound
		}
		return nil, fmt.Errorf("error getting policy by ID: %w", err)
	}
	return p, nil
}

func (r *PolicyRepository) Update(ctx context.Context, p *policy.Policy) error {
	query := `UPDATE policies
              SET policy_number = $1, carrier = $2, policy_type = $3, status = $4, start_date = $5,
                  end_date = $6, premium = $7, coverage_amount = $8, deductible = $9, updated_at = NOW()
              WHERE tenant_id = $10 AND id = $11
              RETURNING updated_at`
	err := r.q.QueryRowContext(ctx, query,
		p.PolicyNumber, p.Carrier, p.Type, p.Status, nullDate(p.StartDate),
		nullDate(p.EndDate), p.Premium, p.CoverageAmount, p.Deductible, p.TenantID, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return policy.ErrNotFound
		}
		return fmt.Errorf("error updating policy: %w", err)
	}
	return nil
}

func (r *PolicyRepository) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM policies WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("error deleting policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected for policy delete: %w", err)
	}
	if n == 0 {
		return policy.ErrNotFound
	}
	return nil
}

func (r *PolicyRepository) ListSchedulable(ctx context.Context) ([]*policy.Policy, error) {
	var suppressed []string
	for _, s := range policy.AllStatuses() {
		if s.SuppressesRenewals() {
			suppressed = append(suppressed, string(s))
		}
	}
	query := `SELECT ` + policyColumns + `
              FROM policies
              WHERE end_date IS NOT NULL AND NOT (status = ANY($1))
              ORDER BY tenant_id, end_date, id`
	rows, err := r.q.QueryContext(ctx, query, pq.Array(suppressed))
	if err != nil {
		return nil, fmt.Errorf("error querying schedulable policies: %w", err)
	}
	defer rows.Close()

	policies := make([]*policy.Policy, 0)
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning policy row: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy rows: %w", err)
	}
	return policies, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(s rowScanner) (*policy.Policy, error) {
	var (
		p          policy.Policy
		start, end sql.NullTime
	)
	err := s.Scan(
		&p.ID, &p.TenantID, &p.ClientID, &p.PolicyNumber, &p.Carrier, &p.Type, &p.Status,
		&start, &end, &p.Premium, &p.CoverageAmount, &p.Deductible, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.StartDate = datePtr(start)
	p.EndDate = datePtr(end)
	return &p, nil
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func datePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}
