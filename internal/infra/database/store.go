package database

import (
	"context"
	"database/sql"
	"fmt"

	"agency_lifecycle/internal/domain/store"
)

// querier is what *sql.DB and *sql.Tx have in common.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the Postgres-backed store.Transactor.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Repos() store.Repositories {
	return repositories(s.db, false)
}

// RunInTx runs fn inside a single database transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(store.Repositories) error) error {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if err := fn(repositories(txn, true)); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func repositories(q querier, inTx bool) store.Repositories {
	return store.Repositories{
		Policies: &PolicyRepository{q: q, inTx: inTx},
		Tasks:    &TaskRepository{q: q},
		Expenses: &ExpenseRepository{q: q, inTx: inTx},
		Activity: &ActivityRepository{q: q, inTx: inTx},
	}
}

// lockClause turns a read into a row lock when running inside a transaction.
func lockClause(inTx bool) string {
	if inTx {
		return " FOR UPDATE"
	}
	return ""
}
