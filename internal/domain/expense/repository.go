package expense

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("expense not found")

// Repository defines persistence for expenses.
type Repository interface {
	Create(ctx context.Context, e *Expense) error
	GetByID(ctx context.Context, tenantID, id string) (*Expense, error)
	// GetForUpdate re-reads an expense and, inside a transaction, locks its row.
	GetForUpdate(ctx context.Context, tenantID, id string) (*Expense, error)
	// ListDueTemplates scans every tenant for recurring templates whose next
	// occurrence is on or before asOf.
	ListDueTemplates(ctx context.Context, asOf time.Time) ([]*Expense, error)
	// SetNextOccurrence moves a template forward.
	SetNextOccurrence(ctx context.Context, tenantID, id string, next time.Time) error
	ListChildren(ctx context.Context, tenantID, parentID string) ([]*Expense, error)
}
