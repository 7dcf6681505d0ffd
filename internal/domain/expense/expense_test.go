package expense

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func template(next time.Time, r Recurrence) *Expense {
	return &Expense{
		ID:             "tmpl-1",
		TenantID:       "agency-a",
		Amount:         decimal.RequireFromString("129.99"),
		Category:       "software",
		Description:    "CRM subscription",
		SubmittedByID:  "user-7",
		Status:         StatusApproved,
		IsRecurring:    true,
		Recurrence:     r,
		NextOccurrence: sql.NullTime{Time: next, Valid: true},
	}
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		r    Recurrence
		want time.Time
	}{
		{"weekly", day(2024, time.February, 26), RecurrenceWeekly, day(2024, time.March, 4)},
		{"monthly end of january", day(2024, time.January, 31), RecurrenceMonthly, day(2024, time.February, 29)},
		{"monthly end of january common year", day(2023, time.January, 31), RecurrenceMonthly, day(2023, time.February, 28)},
		{"monthly plain", day(2024, time.April, 10), RecurrenceMonthly, day(2024, time.May, 10)},
		{"yearly leap day", day(2024, time.February, 29), RecurrenceYearly, day(2025, time.February, 28)},
		{"yearly plain", day(2024, time.July, 1), RecurrenceYearly, day(2025, time.July, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Advance(tt.from, tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdvance_UnknownRecurrence(t *testing.T) {
	_, err := Advance(day(2024, time.January, 1), Recurrence("daily"))
	assert.ErrorIs(t, err, ErrUnknownRecurrence)
}

func TestMaterializeChild(t *testing.T) {
	tmpl := template(day(2024, time.January, 31), RecurrenceMonthly)

	child, next, err := MaterializeChild(tmpl, "child-1")
	require.NoError(t, err)

	assert.Equal(t, "child-1", child.ID)
	assert.Equal(t, tmpl.TenantID, child.TenantID)
	assert.True(t, tmpl.Amount.Equal(child.Amount))
	assert.Equal(t, tmpl.Category, child.Category)
	assert.Equal(t, tmpl.Description, child.Description)
	assert.Equal(t, tmpl.SubmittedByID, child.SubmittedByID)
	assert.Equal(t, day(2024, time.January, 31), child.Date)
	assert.Equal(t, StatusDraft, child.Status)
	assert.False(t, child.IsRecurring)
	assert.Empty(t, child.Recurrence)
	assert.False(t, child.NextOccurrence.Valid)
	assert.Equal(t, sql.NullString{String: "tmpl-1", Valid: true}, child.ParentExpenseID)
	assert.NoError(t, child.Validate())

	assert.Equal(t, day(2024, time.February, 29), next)
	// the template itself is untouched until the caller persists the advancement
	assert.Equal(t, day(2024, time.January, 31), tmpl.NextOccurrence.Time)
}

func TestMaterializeChild_RejectsNonTemplate(t *testing.T) {
	e := template(day(2024, time.January, 1), RecurrenceMonthly)
	e.IsRecurring = false
	_, _, err := MaterializeChild(e, "x")
	assert.ErrorIs(t, err, ErrInvalidExpense)
}

func TestIsDue(t *testing.T) {
	today := day(2024, time.March, 10)
	assert.True(t, template(today, RecurrenceWeekly).IsDue(today))
	assert.True(t, template(day(2024, time.March, 1), RecurrenceWeekly).IsDue(today))
	assert.False(t, template(day(2024, time.March, 11), RecurrenceWeekly).IsDue(today))

	noRecurrence := template(today, "")
	assert.False(t, noRecurrence.IsDue(today))
}

func TestValidate_RecurringInvariant(t *testing.T) {
	ok := template(day(2024, time.March, 1), RecurrenceMonthly)
	assert.NoError(t, ok.Validate())

	missingNext := template(day(2024, time.March, 1), RecurrenceMonthly)
	missingNext.NextOccurrence = sql.NullTime{}
	assert.ErrorIs(t, missingNext.Validate(), ErrInvalidExpense)

	strayRecurrence := template(day(2024, time.March, 1), RecurrenceMonthly)
	strayRecurrence.IsRecurring = false
	err := strayRecurrence.Validate()
	require.ErrorIs(t, err, ErrInvalidExpense)
	assert.Contains(t, err.Error(), "recurrence set on a non-recurring expense")

	zero := template(day(2024, time.March, 1), RecurrenceMonthly)
	zero.Amount = decimal.Zero
	assert.ErrorIs(t, zero.Validate(), ErrInvalidExpense)
}
