// Package store bundles the repositories the lifecycle engine works with and the
// transaction primitive that scopes them.
package store

import (
	"context"

	"agency_lifecycle/internal/domain/activity"
	"agency_lifecycle/internal/domain/expense"
	"agency_lifecycle/internal/domain/policy"
	"agency_lifecycle/internal/domain/task"
)

// Repositories is a consistent set of repositories. Inside RunInTx every member
// shares the same transaction.
type Repositories struct {
	Policies policy.Repository
	Tasks    task.Repository
	Expenses expense.Repository
	Activity activity.Repository
}

// Transactor hands out repositories and runs units of work atomically.
type Transactor interface {
	// Repos returns repositories that auto-commit each call.
	Repos() Repositories
	// RunInTx commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(Repositories) error) error
}
