// internal/infra/database/postgres_expense_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agency_lifecycle/internal/domain/expense"
)

const expenseColumns = `id, tenant_id, amount, category, description, expense_date, submitted_by_id, status,
       is_recurring, COALESCE(recurrence, ''), next_occurrence, parent_expense_id, created_at, updated_at`

type ExpenseRepository struct {
	q    querier
	inTx bool
}

func (r *ExpenseRepository) Create(ctx context.Context, e *expense.Expense) error {
	query := `INSERT INTO expenses (id, tenant_id, amount, category, description, expense_date, submitted_by_id,
                                   status, is_recurring, recurrence, next_occurrence, parent_expense_id)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)
              RETURNING created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		e.ID, e.TenantID, e.Amount, e.Category, e.Description, e.Date, e.SubmittedByID,
		e.Status, e.IsRecurring, string(e.Recurrence), e.NextOccurrence, e.ParentExpenseID,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating expense: %w", translate(err))
	}
	return nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, tenantID, id string) (*expense.Expense, error) {
	return r.get(ctx, tenantID, id, "")
}

func (r *ExpenseRepository) GetForUpdate(ctx context.Context, tenantID, id string) (*expense.Expense, error) {
	return r.get(ctx, tenantID, id, lockClause(r.inTx))
}

func (r *ExpenseRepository) get(ctx context.Context, tenantID, id, lock string) (*expense.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE tenant_id = $1 AND id = $2` + lock
	e, err := scanExpense(r.q.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, expense.ErrNotFound
		}
		return nil, fmt.Errorf("error getting expense by ID: %w", err)
	}
	return e, nil
}

func (r *ExpenseRepository) ListDueTemplates(ctx context.Context, asOf time.Time) ([]*expense.Expense, error) {
	query := `SELECT ` + expenseColumns + `
              FROM expenses
              WHERE is_recurring AND recurrence IS NOT NULL AND next_occurrence <= $1
              ORDER BY tenant_id, next_occurrence, id`
	return r.list(ctx, "error querying due recurring expenses", query, asOf)
}

func (r *ExpenseRepository) SetNextOccurrence(ctx context.Context, tenantID, id string, next time.Time) error {
	query := `UPDATE expenses SET next_occurrence = $1, updated_at = NOW()
              WHERE tenant_id = $2 AND id = $3 AND is_recurring`
	res, err := r.q.ExecContext(ctx, query, next, tenantID, id)
	if err != nil {
		return fmt.Errorf("error advancing recurring expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected for expense advance: %w", err)
	}
	if n == 0 {
		return expense.ErrNotFound
	}
	return nil
}

func (r *ExpenseRepository) ListChildren(ctx context.Context, tenantID, parentID string) ([]*expense.Expense, error) {
	query := `SELECT ` + expenseColumns + `
              FROM expenses
              WHERE tenant_id = $1 AND parent_expense_id = $2
              ORDER BY expense_date, created_at`
	return r.list(ctx, "error querying child expenses", query, tenantID, parentID)
}

func (r *ExpenseRepository) list(ctx context.Context, what, query string, args ...any) ([]*expense.Expense, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	expenses := make([]*expense.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning expense row: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expense rows: %w", err)
	}
	return expenses, nil
}

func scanExpense(s rowScanner) (*expense.Expense, error) {
	var e expense.Expense
	err := s.Scan(
		&e.ID, &e.TenantID, &e.Amount, &e.Category, &e.Description, &e.Date, &e.SubmittedByID, &e.Status,
		&e.IsRecurring, &e.Recurrence, &e.NextOccurrence, &e.ParentExpenseID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Date = e.Date.UTC()
	if e.NextOccurrence.Valid {
		e.NextOccurrence.Time = e.NextOccurrence.Time.UTC()
	}
	return &e, nil
}
