// internal/domain/task/task.go
package task

import (
	"database/sql"
	"time"
)

// Type distinguishes reminder tasks generated by the engine from hand-written ones.
type Type string

const (
	TypeRenewal Type = "renewal"
	TypeGeneral Type = "general"
)

// Priority of a task as shown on the agent's task list.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Status of a task. Done is the only terminal status.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusWaiting    Status = "waiting"
	StatusDone       Status = "done"
)

func (s Status) IsDone() bool { return s == StatusDone }

// Task is a reminder record. Renewal tasks point back at a policy and remember which
// milestone (RenewalDaysBefore) produced them.
type Task struct {
	ID                string
	TenantID          string
	PolicyID          string
	ClientID          string
	Title             string
	Description       string
	Type              Type
	Priority          Priority
	Status            Status
	DueDate           time.Time
	RenewalDaysBefore int // 0 for non-renewal tasks
	CompletedAt       sql.NullTime
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
