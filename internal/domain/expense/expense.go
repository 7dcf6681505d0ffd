// internal/domain/expense/expense.go
package expense

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status of an expense record.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPaid      Status = "paid"
)

var ErrInvalidExpense = errors.New("invalid expense")

// Expense is either a one-off expense, a recurring template (IsRecurring) or a
// child generated from a template (ParentExpenseID set).
type Expense struct {
	ID              string
	TenantID        string
	Amount          decimal.Decimal
	Category        string
	Description     string
	Date            time.Time
	SubmittedByID   string
	Status          Status
	IsRecurring     bool
	Recurrence      Recurrence   // empty unless IsRecurring
	NextOccurrence  sql.NullTime // valid iff IsRecurring
	ParentExpenseID sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks amounts and the recurring-template invariant.
func (e *Expense) Validate() error {
	var problems []string
	if !e.Amount.IsPositive() {
		problems = append(problems, "amount must be greater than zero")
	}
	if strings.TrimSpace(e.Category) == "" {
		problems = append(problems, "category is required")
	}
	if e.IsRecurring {
		if !e.Recurrence.Valid() {
			problems = append(problems, "recurring expense needs a weekly, monthly or yearly recurrence")
		}
		if !e.NextOccurrence.Valid {
			problems = append(problems, "recurring expense needs a next occurrence")
		}
	} else {
		if e.Recurrence != "" {
			problems = append(problems, "recurrence set on a non-recurring expense")
		}
		if e.NextOccurrence.Valid {
			problems = append(problems, "next occurrence set on a non-recurring expense")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidExpense, strings.Join(problems, "; "))
	}
	return nil
}

// IsDue reports whether a template should produce a child on the given day.
func (e *Expense) IsDue(today time.Time) bool {
	return e.IsRecurring && e.Recurrence != "" && e.NextOccurrence.Valid && !e.NextOccurrence.Time.After(today)
}

// MaterializeChild builds the draft expense for the template's current occurrence
// and returns the occurrence that follows it. Nothing is persisted.
func MaterializeChild(template *Expense, childID string) (*Expense, time.Time, error) {
	if !template.IsRecurring || !template.NextOccurrence.Valid {
		return nil, time.Time{}, fmt.Errorf("%w: expense %s is not a recurring template", ErrInvalidExpense, template.ID)
	}
	occurrence := template.NextOccurrence.Time
	next, err := Advance(occurrence, template.Recurrence)
	if err != nil {
		return nil, time.Time{}, err
	}
	child := &Expense{
		ID:              childID,
		TenantID:        template.TenantID,
		Amount:          template.Amount,
		Category:        template.Category,
		Description:     template.Description,
		Date:            occurrence,
		SubmittedByID:   template.SubmittedByID,
		Status:          StatusDraft,
		IsRecurring:     false,
		ParentExpenseID: sql.NullString{String: template.ID, Valid: true},
	}
	return child, next, nil
}
