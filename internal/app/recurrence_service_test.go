package app

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"agency_lifecycle/internal/domain/calendar"
	"agency_lifecycle/internal/domain/expense"
	"agency_lifecycle/internal/infra/memory"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecurrenceFixture(t *testing.T) (*memory.Store, *RecurrenceService) {
	t.Helper()
	l, _ := logtest.NewNullLogger()
	st := memory.NewStore()
	st.SetNow(func() time.Time { return testNow })
	svc := NewRecurrenceService(st, calendar.FixedClock{At: testNow}, 2, logrus.NewEntry(l))
	svc.newID = sequence("child")
	return st, svc
}

func seedTemplate(t *testing.T, st *memory.Store, tenantID, id string, next time.Time, r expense.Recurrence) {
	t.Helper()
	require.NoError(t, st.Repos().Expenses.Create(t.Context(), &expense.Expense{
		ID:             id,
		TenantID:       tenantID,
		Amount:         decimal.RequireFromString("49.00"),
		Category:       "software",
		Description:    "Rating engine licence",
		Date:           next,
		SubmittedByID:  "user-1",
		Status:         expense.StatusApproved,
		IsRecurring:    true,
		Recurrence:     r,
		NextOccurrence: sql.NullTime{Time: next, Valid: true},
	}))
}

func TestRecurrenceRun_MonthlyTemplateOncePerDay(t *testing.T) {
	st, svc := newRecurrenceFixture(t)
	today := date(2024, time.March, 1)
	seedTemplate(t, st, "agency-a", "tmpl-1", today, expense.RecurrenceMonthly)

	summary, err := svc.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, today, summary.RunDate)
	assert.Equal(t, 1, summary.TenantsProcessed)
	assert.Equal(t, 1, summary.TemplatesProcessed)
	assert.Equal(t, 1, summary.ChildrenCreated)
	assert.False(t, summary.HasFailures())

	children, err := st.Repos().Expenses.ListChildren(t.Context(), "agency-a", "tmpl-1")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, today, children[0].Date)
	assert.Equal(t, expense.StatusDraft, children[0].Status)

	tmpl, err := st.Repos().Expenses.GetByID(t.Context(), "agency-a", "tmpl-1")
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.April, 1), tmpl.NextOccurrence.Time)

	summary, err = svc.Run(t.Context())
	require.NoError(t, err)
	assert.Zero(t, summary.ChildrenCreated)
	children, err = st.Repos().Expenses.ListChildren(t.Context(), "agency-a", "tmpl-1")
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestRecurrenceRun_TenantFailureIsIsolated(t *testing.T) {
	st, svc := newRecurrenceFixture(t)
	today := date(2024, time.March, 1)
	for _, tenant := range []string{"tenant-a", "tenant-b", "tenant-c"} {
		seedTemplate(t, st, tenant, tenant+"-rent", today, expense.RecurrenceMonthly)
		seedTemplate(t, st, tenant, tenant+"-tools", calendar.AddDays(today, -3), expense.RecurrenceWeekly)
	}
	st.SetFault(func(op memory.Op, tenantID string) error {
		if op == memory.OpExpenseAdvance && tenantID == "tenant-b" {
			return errors.New("connection reset")
		}
		return nil
	})

	summary, err := svc.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TenantsProcessed)
	assert.Equal(t, 4, summary.ChildrenCreated)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "tenant-b", summary.Failures[0].TenantID)
	assert.ErrorIs(t, summary.Failures[0].Err, ErrTenantBatch)

	st.SetFault(nil)
	for _, tenant := range []string{"tenant-a", "tenant-c"} {
		children, err := st.Repos().Expenses.ListChildren(t.Context(), tenant, tenant+"-rent")
		require.NoError(t, err)
		assert.Len(t, children, 1, tenant)

		tools, err := st.Repos().Expenses.GetByID(t.Context(), tenant, tenant+"-tools")
		require.NoError(t, err)
		assert.Equal(t, date(2024, time.March, 5), tools.NextOccurrence.Time, tenant)
	}

	// tenant B rolled back as a whole, including the child created before the fault
	children, err := st.Repos().Expenses.ListChildren(t.Context(), "tenant-b", "tenant-b-rent")
	require.NoError(t, err)
	assert.Empty(t, children)
	rent, err := st.Repos().Expenses.GetByID(t.Context(), "tenant-b", "tenant-b-rent")
	require.NoError(t, err)
	assert.Equal(t, today, rent.NextOccurrence.Time)

	// a retry the same day only picks up what is still due
	summary, err = svc.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TenantsProcessed)
	assert.Equal(t, 2, summary.ChildrenCreated)
	assert.False(t, summary.HasFailures())
}

func TestRecurrenceRun_IgnoresFutureAndNonRecurring(t *testing.T) {
	st, svc := newRecurrenceFixture(t)
	seedTemplate(t, st, "agency-a", "future", date(2024, time.March, 2), expense.RecurrenceYearly)
	require.NoError(t, st.Repos().Expenses.Create(t.Context(), &expense.Expense{
		ID:       "one-off",
		TenantID: "agency-a",
		Amount:   decimal.RequireFromString("10"),
		Category: "office",
		Date:     date(2024, time.February, 1),
		Status:   expense.StatusPaid,
	}))

	summary, err := svc.Run(t.Context())
	require.NoError(t, err)
	assert.Zero(t, summary.TemplatesProcessed)
	assert.Zero(t, summary.TenantsProcessed)
}

func TestRecurrenceRun_DueScanFailure(t *testing.T) {
	st, svc := newRecurrenceFixture(t)
	st.SetFault(func(op memory.Op, _ string) error {
		if op == memory.OpExpenseDueScan {
			return errors.New("timeout")
		}
		return nil
	})
	_, err := svc.Run(t.Context())
	assert.Error(t, err)
}

func TestRecurrenceRun_OverdueTemplateCatchesUpOnePeriodPerRun(t *testing.T) {
	st, svc := newRecurrenceFixture(t)
	seedTemplate(t, st, "agency-a", "tmpl-1", date(2024, time.January, 31), expense.RecurrenceMonthly)

	_, err := svc.Run(t.Context())
	require.NoError(t, err)

	tmpl, err := st.Repos().Expenses.GetByID(t.Context(), "agency-a", "tmpl-1")
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.February, 29), tmpl.NextOccurrence.Time)

	children, err := st.Repos().Expenses.ListChildren(t.Context(), "agency-a", "tmpl-1")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, date(2024, time.January, 31), children[0].Date)
}
