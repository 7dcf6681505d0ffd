// internal/infra/database/postgres_task_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agency_lifecycle/internal/domain/task"
)

const taskColumns = `id, tenant_id, COALESCE(policy_id, ''), client_id, title, description, task_type,
       priority, status, due_date, renewal_days_before, completed_at, created_at, updated_at`

type TaskRepository struct {
	q querier
}

func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	query := `INSERT INTO tasks (id, tenant_id, policy_id, client_id, title, description, task_type,
                                priority, status, due_date, renewal_days_before)
              VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11)
              RETURNING created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		t.ID, t.TenantID, t.PolicyID, t.ClientID, t.Title, t.Description, t.Type,
		t.Priority, t.Status, t.DueDate, t.RenewalDaysBefore,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating task: %w", translate(err))
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, tenantID, id string) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE tenant_id = $1 AND id = $2`
	t, err := scanTask(r.q.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrNotFound
		}
		return nil, fmt.Errorf("error getting task by ID: %w", err)
	}
	return t, nil
}

func (r *TaskRepository) ListRenewalByPolicy(ctx context.Context, tenantID, policyID string) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
              FROM tasks
              WHERE tenant_id = $1 AND policy_id = $2 AND task_type = $3
              ORDER BY created_at, id` // oldest first; duplicates keep the first
	rows, err := r.q.QueryContext(ctx, query, tenantID, policyID, task.TypeRenewal)
	if err != nil {
		return nil, fmt.Errorf("error querying renewal tasks by policy: %w", err)
	}
	defer rows.Close()

	tasks := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) UpdateSchedule(ctx context.Context, t *task.Task) error {
	query := `UPDATE tasks
              SET due_date = $1, priority = $2, title = $3, updated_at = NOW()
              WHERE tenant_id = $4 AND id = $5
              RETURNING updated_at`
	err := r.q.QueryRowContext(ctx, query, t.DueDate, t.Priority, t.Title, t.TenantID, t.ID).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.ErrNotFound
		}
		return fmt.Errorf("error updating task schedule: %w", err)
	}
	return nil
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, tenantID, id string, status task.Status) error {
	query := `UPDATE tasks
              SET status = $1,
                  completed_at = CASE WHEN $1 = 'done' THEN NOW() ELSE NULL END,
                  updated_at = NOW()
              WHERE tenant_id = $2 AND id = $3`
	return r.execOne(ctx, "error updating task status", query, string(status), tenantID, id)
}

func (r *TaskRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.execOne(ctx, "error deleting task", `DELETE FROM tasks WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

func (r *TaskRepository) DeleteRenewalByPolicy(ctx context.Context, tenantID, policyID string, keepDone bool) (int, error) {
	query := `DELETE FROM tasks
              WHERE tenant_id = $1 AND policy_id = $2 AND task_type = $3
                AND (NOT $4 OR status <> 'done')`
	res, err := r.q.ExecContext(ctx, query, tenantID, policyID, task.TypeRenewal, keepDone)
	if err != nil {
		return 0, fmt.Errorf("error deleting renewal tasks by policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error getting rows affected for renewal task delete: %w", err)
	}
	return int(n), nil
}

func (r *TaskRepository) execOne(ctx context.Context, what, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return task.ErrNotFound
	}
	return nil
}

func scanTask(s rowScanner) (*task.Task, error) {
	var t task.Task
	err := s.Scan(
		&t.ID, &t.TenantID, &t.PolicyID, &t.ClientID, &t.Title, &t.Description, &t.Type,
		&t.Priority, &t.Status, &t.DueDate, &t.RenewalDaysBefore, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.DueDate = t.DueDate.UTC()
	return &t, nil
}
