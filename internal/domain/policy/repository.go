package policy

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a policy does not exist in the given tenant.
var ErrNotFound = errors.New("policy not found")

// Repository defines persistence for policies. Every lookup is scoped by tenant.
type Repository interface {
	Create(ctx context.Context, p *Policy) error
	GetByID(ctx context.Context, tenantID, id string) (*Policy, error)
	// GetForUpdate reads the policy and, inside a transaction, locks its row.
	GetForUpdate(ctx context.Context, tenantID, id string) (*Policy, error)
	Update(ctx context.Context, p *Policy) error
	Delete(ctx context.Context, tenantID, id string) error
	// ListSchedulable returns policies across all tenants that have an end date and
	// are not in a status that suppresses renewal reminders.
	ListSchedulable(ctx context.Context) ([]*Policy, error)
}
