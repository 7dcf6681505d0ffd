package app

import (
	"fmt"
	"testing"
	"time"

	"agency_lifecycle/internal/domain/calendar"
	"agency_lifecycle/internal/domain/policy"
	"agency_lifecycle/internal/domain/task"
	"agency_lifecycle/internal/infra/memory"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	store     *memory.Store
	clock     calendar.FixedClock
	hook      *logtest.Hook
	logger    *logrus.Entry
	renewals  *RenewalService
	lifecycle *LifecycleService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l, hook := logtest.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	f := &fixture{
		store:  memory.NewStore(),
		clock:  calendar.FixedClock{At: testNow},
		hook:   hook,
		logger: logrus.NewEntry(l),
	}
	f.store.SetNow(func() time.Time { return testNow })
	f.renewals = NewRenewalService(f.store, NewRenewalPlanner(nil), f.logger)
	f.renewals.newID = sequence("task")
	f.lifecycle = NewLifecycleService(f.store, f.renewals, f.clock, f.logger)
	f.lifecycle.newID = sequence("id")
	return f
}

func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

// seedPolicy writes a policy straight into the store without going through the
// lifecycle service.
func (f *fixture) seedPolicy(t *testing.T, id string, status policy.Status, end *time.Time) *policy.Policy {
	t.Helper()
	p := &policy.Policy{
		ID:           id,
		TenantID:     "agency-a",
		ClientID:     "client-1",
		PolicyNumber: "PN-" + id,
		Carrier:      "Acme Mutual",
		Type:         "auto",
		Status:       status,
		EndDate:      end,
		Premium:      decimal.RequireFromString("1200.00"),
	}
	require.NoError(t, f.store.Repos().Policies.Create(t.Context(), p))
	return p
}

func (f *fixture) renewalTasks(t *testing.T, tenantID, policyID string) []*task.Task {
	t.Helper()
	tasks, err := f.store.Repos().Tasks.ListRenewalByPolicy(t.Context(), tenantID, policyID)
	require.NoError(t, err)
	return tasks
}

func byMilestone(tasks []*task.Task) map[int]*task.Task {
	out := make(map[int]*task.Task, len(tasks))
	for _, t := range tasks {
		out[t.RenewalDaysBefore] = t
	}
	return out
}

func (f *fixture) hasLog(level logrus.Level, msg string) bool {
	for _, e := range f.hook.AllEntries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}
