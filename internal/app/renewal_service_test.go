package app

import (
	"errors"
	"testing"
	"time"

	"agency_lifecycle/internal/domain/calendar"
	"agency_lifecycle/internal/domain/policy"
	"agency_lifecycle/internal/domain/task"
	"agency_lifecycle/internal/infra/memory"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_CreatesPlannedTasks(t *testing.T) {
	f := newFixture(t)
	end := calendar.AddDays(date(2024, time.March, 1), 65)
	p := f.seedPolicy(t, "pol-1", policy.StatusActive, &end)

	res, err := f.renewals.GenerateTasksForPolicy(t.Context(), p)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Created: 3}, res)

	tasks := byMilestone(f.renewalTasks(t, "agency-a", "pol-1"))
	require.Len(t, tasks, 3)
	assert.Equal(t, date(2024, time.March, 6), tasks[60].DueDate)
	assert.Equal(t, date(2024, time.April, 5), tasks[30].DueDate)
	assert.Equal(t, date(2024, time.April, 28), tasks[7].DueDate)

	for _, tk := range tasks {
		assert.Equal(t, task.TypeRenewal, tk.Type)
		assert.Equal(t, task.StatusTodo, tk.Status)
		assert.Equal(t, "client-1", tk.ClientID)
		assert.Equal(t, renewalTaskDescription, tk.Description)
	}
}

func TestReconcile_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	end := date(2024, time.June, 30)
	p := f.seedPolicy(t, "pol-1", policy.StatusActive, &end)

	_, err := f.renewals.GenerateTasksForPolicy(t.Context(), p)
	require.NoError(t, err)

	f.store.ResetWrites()
	res, err := f.renewals.RegenerateRenewalTasks(t.Context(), p)
	require.NoError(t, err)
	assert.Zero(t, res.Writes())
	assert.Equal(t, 3, res.Unchanged)
	assert.Zero(t, f.store.Writes())
	assert.True(t, f.hasLog(logrus.DebugLevel, "Renewal tasks already up to date"))
}

func TestReconcile_EndDateMoveUpdatesInPlace(t *testing.T) {
	f := newFixture(t)
	end := date(2024, time.June, 30)
	p := f.seedPolicy(t, "pol-1", policy.StatusActive, &end)
	_, err := f.renewals.GenerateTasksForPolicy(t.Context(), p)
	require.NoError(t, err)
	before := byMilestone(f.renewalTasks(t, "agency-a", "pol-1"))

	moved := calendar.AddDays(end, 30)
	p.EndDate = &moved
	res, err := f.renewals.RegenerateRenewalTasks(t.Context(), p)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Updated: 3}, res)

	after := byMilestone(f.renewalTasks(t, "agency-a", "pol-1"))
	require.Len(t, after, 3)
	for days, tk := range after {
		assert.Equal(t, before[days].ID, tk.ID, "milestone %d recreated", days)
		assert.Equal(t, calendar.DaysBefore(moved, days), tk.DueDate)
		assert.Contains(t, tk.Title, "(2024-07-30)")
	}
}

func TestReconcile_DoneTasksAreNeverTouched(t *testing.T) {
	f := newFixture(t)
	end := date(2024, time.June, 30)
	p := f.seedPolicy(t, "pol-1", policy.StatusActive, &end)
	_, err := f.renewals.GenerateTasksForPolicy(t.Context(), p)
	require.NoError(t, err)

	done := byMilestone(f.renewalTasks(t, "agency-a", "pol-1"))[60]
	require.NoError(t, f.store.Repos().Tasks.UpdateStatus(t.Context(), "agency-a", done.ID, task.StatusDone))

	moved := date(2024, time.September, 30)
	p.EndDate = &moved
	res, err := f.renewals.RegenerateRenewalTasks(t.Context(), p)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Unchanged)
	assert.Zero(t, res.Created)

	got, err := f.store.Repos().Tasks.GetByID(t.Context(), "agency-a", done.ID)
	require.NoError(t, err)
	assert.Equal(t, done.DueDate, got.DueDate)
	assert.Equal(t, task.StatusDone, got.Status)
	assert.True(t, got.CompletedAt.Valid)

	// an empty plan removes open tasks but keeps the completed one
	res, err = f.renewals.Reconcile(t.Context(), ownerOf(p), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)
	remaining := f.renewalTasks(t, "agency-a", "pol-1")
	require.Len(t, remaining, 1)
	assert.Equal(t, done.ID, remaining[0].ID)
}

func TestReconcile_CollapsesDuplicateMilestones(t *testing.T) {
	f := newFixture(t)
	end := date(2024, time.June, 30)
	p := f.seedPolicy(t, "pol-1", policy.StatusActive, &end)

	planned := f.renewals.Planner().PlanForPolicy(p)
	for _, id := range []string{"legacy-1", "legacy-2"} {
		require.NoError(t, f.store.Repos().Tasks.Create(t.Context(), &task.Task{
			ID:                id,
			TenantID:          "agency-a",
			PolicyID:          "pol-1",
			ClientID:          "client-1",
			Title:             planned[1].Title,
			Type:              task.TypeRenewal,
			Priority:          planned[1].Priority,
			Status:            task.StatusTodo,
			DueDate:           planned[1].DueDate,
			RenewalDaysBefore: 30,
		}))
	}

	res, err := f.renewals.Reconcile(t.Context(), ownerOf(p), planned)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Created: 2, Deleted: 1, Unchanged: 1}, res)

	tasks := byMilestone(f.renewalTasks(t, "agency-a", "pol-1"))
	assert.Len(t, tasks, 3)
	assert.Equal(t, "legacy-1", tasks[30].ID)
}

func TestReconcile_IgnoresGeneralTasks(t *testing.T) {
	f := newFixture(t)
	end := date(2024, time.June, 30)
	p := f.seedPolicy(t, "pol-1", policy.StatusActive, &end)
	require.NoError(t, f.store.Repos().Tasks.Create(t.Context(), &task.Task{
		ID:       "manual-1",
		TenantID: "agency-a",
		PolicyID: "pol-1",
		Title:    "Call about claim",
		Type:     task.TypeGeneral,
		Status:   task.StatusTodo,
		DueDate:  date(2024, time.March, 4),
	}))

	_, err := f.renewals.Reconcile(t.Context(), ownerOf(p), nil)
	require.NoError(t, err)

	_, err = f.store.Repos().Tasks.GetByID(t.Context(), "agency-a", "manual-1")
	assert.NoError(t, err)
}

func TestReconcile_FailureRollsBackAndIsTyped(t *testing.T) {
	f := newFixture(t)
	end := date(2024, time.June, 30)
	p := f.seedPolicy(t, "pol-1", policy.StatusActive, &end)

	calls := 0
	f.store.SetFault(func(op memory.Op, _ string) error {
		if op != memory.OpTaskCreate {
			return nil
		}
		calls++
		if calls == 3 {
			return errors.New("disk full")
		}
		return nil
	})

	_, err := f.renewals.GenerateTasksForPolicy(t.Context(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReconciliation)

	var recErr *ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "pol-1", recErr.PolicyID)

	f.store.SetFault(nil)
	assert.Empty(t, f.renewalTasks(t, "agency-a", "pol-1"))
}

func TestDeleteRenewalTasksForPolicy_KeepsDone(t *testing.T) {
	f := newFixture(t)
	end := date(2024, time.June, 30)
	p := f.seedPolicy(t, "pol-1", policy.StatusActive, &end)
	_, err := f.renewals.GenerateTasksForPolicy(t.Context(), p)
	require.NoError(t, err)
	done := byMilestone(f.renewalTasks(t, "agency-a", "pol-1"))[7]
	require.NoError(t, f.store.Repos().Tasks.UpdateStatus(t.Context(), "agency-a", done.ID, task.StatusDone))

	n, err := f.renewals.DeleteRenewalTasksForPolicy(t.Context(), "agency-a", "pol-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	remaining := f.renewalTasks(t, "agency-a", "pol-1")
	require.Len(t, remaining, 1)
	assert.Equal(t, done.ID, remaining[0].ID)

	n, err = f.renewals.PurgeRenewalTasksForPolicy(t.Context(), "agency-a", "pol-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, f.renewalTasks(t, "agency-a", "pol-1"))
}

func TestSweep_RepairsDrift(t *testing.T) {
	f := newFixture(t)
	endA := date(2024, time.June, 30)
	endB := date(2024, time.August, 15)
	a := f.seedPolicy(t, "pol-a", policy.StatusActive, &endA)
	f.seedPolicy(t, "pol-b", policy.StatusActive, &endB)
	f.seedPolicy(t, "pol-c", policy.StatusCancelled, &endB)
	f.seedPolicy(t, "pol-d", policy.StatusActive, nil)

	_, err := f.renewals.GenerateTasksForPolicy(t.Context(), a)
	require.NoError(t, err)

	summary, err := f.renewals.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PoliciesChecked)
	assert.Equal(t, 1, summary.PoliciesChanged)
	assert.Equal(t, 3, summary.Created)
	assert.Equal(t, 3, summary.Unchanged)
	assert.Zero(t, summary.Failures)
	assert.Len(t, f.renewalTasks(t, "agency-a", "pol-b"), 3)
}
