// internal/domain/activity/activity.go
package activity

import (
	"context"
	"time"
)

// Type names an entry on a client's activity timeline.
type Type string

const (
	TypePolicyCreated       Type = "policy_created"
	TypePolicyStatusChanged Type = "policy_status_changed"
	TypePolicyDeleted       Type = "policy_deleted"
)

// Event is one append-only activity log entry.
type Event struct {
	ID          string
	TenantID    string
	ClientID    string
	UserID      string
	Type        Type
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Repository is the append-only activity sink. A failed Record must leave the
// surrounding transaction usable.
type Repository interface {
	Record(ctx context.Context, e *Event) error
	ListByClient(ctx context.Context, tenantID, clientID string) ([]*Event, error)
}
