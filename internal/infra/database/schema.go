package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS policies (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    client_id       TEXT NOT NULL,
    policy_number   TEXT NOT NULL DEFAULT '',
    carrier         TEXT NOT NULL DEFAULT '',
    policy_type     TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'draft',
    start_date      DATE,
    end_date        DATE,
    premium         NUMERIC(14,2) NOT NULL DEFAULT 0,
    coverage_amount NUMERIC(16,2),
    deductible      NUMERIC(14,2),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_policies_tenant ON policies (tenant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_policies_schedulable ON policies (status, end_date) WHERE end_date IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS tasks (
    id                  TEXT PRIMARY KEY,
    tenant_id           TEXT NOT NULL,
    policy_id           TEXT,
    client_id           TEXT NOT NULL DEFAULT '',
    title               TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    task_type           TEXT NOT NULL DEFAULT 'general',
    priority            TEXT NOT NULL DEFAULT 'medium',
    status              TEXT NOT NULL DEFAULT 'todo',
    due_date            DATE NOT NULL,
    renewal_days_before INTEGER NOT NULL DEFAULT 0,
    completed_at        TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_policy ON tasks (tenant_id, policy_id, task_type)`,
	// at most one open reminder per policy milestone
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_open_renewal
    ON tasks (tenant_id, policy_id, renewal_days_before)
    WHERE task_type = 'renewal' AND status <> 'done'`,

	`CREATE TABLE IF NOT EXISTS expenses (
    id                TEXT PRIMARY KEY,
    tenant_id         TEXT NOT NULL,
    amount            NUMERIC(14,2) NOT NULL CHECK (amount > 0),
    category          TEXT NOT NULL,
    description       TEXT NOT NULL DEFAULT '',
    expense_date      DATE NOT NULL,
    submitted_by_id   TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'draft',
    is_recurring      BOOLEAN NOT NULL DEFAULT FALSE,
    recurrence        TEXT,
    next_occurrence   DATE,
    parent_expense_id TEXT REFERENCES expenses(id) ON DELETE SET NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT expenses_recurring_shape CHECK (
        (is_recurring AND recurrence IS NOT NULL AND next_occurrence IS NOT NULL)
        OR (NOT is_recurring AND recurrence IS NULL AND next_occurrence IS NULL)
    )
)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_due ON expenses (next_occurrence, tenant_id) WHERE is_recurring`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_parent ON expenses (tenant_id, parent_expense_id)`,

	`CREATE TABLE IF NOT EXISTS activities (
    id          TEXT PRIMARY KEY,
    tenant_id   TEXT NOT NULL,
    client_id   TEXT NOT NULL DEFAULT '',
    user_id     TEXT NOT NULL DEFAULT '',
    event_type  TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    metadata    JSONB,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_client ON activities (tenant_id, client_id, created_at)`,
}

// Migrate creates the tables the lifecycle engine needs if they don't exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
