package task

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("task not found")

// Repository defines persistence for tasks. Renewal-task methods only ever see
// tasks with Type == TypeRenewal.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, tenantID, id string) (*Task, error)
	// ListRenewalByPolicy returns all renewal tasks of a policy, oldest first.
	ListRenewalByPolicy(ctx context.Context, tenantID, policyID string) ([]*Task, error)
	// UpdateSchedule persists DueDate, Priority and Title.
	UpdateSchedule(ctx context.Context, t *Task) error
	// UpdateStatus is the only change a person may make to a renewal task.
	UpdateStatus(ctx context.Context, tenantID, id string, status Status) error
	Delete(ctx context.Context, tenantID, id string) error
	// DeleteRenewalByPolicy removes the policy's renewal tasks and reports how many
	// rows went away. Done tasks survive when keepDone is set.
	DeleteRenewalByPolicy(ctx context.Context, tenantID, policyID string, keepDone bool) (int, error)
}
