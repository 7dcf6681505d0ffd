// internal/app/renewal_planner.go
package app

import (
	"fmt"
	"sort"
	"time"

	"agency_lifecycle/internal/domain/calendar"
	"agency_lifecycle/internal/domain/policy"
	"agency_lifecycle/internal/domain/task"
)

// Milestone is one (days before expiry, priority) pair driving a renewal reminder.
type Milestone struct {
	DaysBefore int
	Priority   task.Priority
}

// DefaultMilestones is the reminder schedule used for every tenant.
var DefaultMilestones = []Milestone{
	{DaysBefore: 60, Priority: task.PriorityMedium},
	{DaysBefore: 30, Priority: task.PriorityHigh},
	{DaysBefore: 7, Priority: task.PriorityUrgent},
}

// TaskKey identifies a renewal task independently of when it was created.
type TaskKey struct {
	PolicyID   string
	DaysBefore int
}

// PlannedTask is a renewal reminder that should exist for a policy.
type PlannedTask struct {
	PolicyID   string
	DaysBefore int
	DueDate    time.Time
	Priority   task.Priority
	Title      string
}

func (p PlannedTask) Key() TaskKey { return TaskKey{PolicyID: p.PolicyID, DaysBefore: p.DaysBefore} }

// RenewalPlanner derives the target set of renewal reminders from a policy's
// expiry date and status. It holds no state besides its milestone set.
type RenewalPlanner struct {
	milestones []Milestone
}

// NewRenewalPlanner sorts milestones furthest-first and drops duplicate offsets.
// A nil or empty set falls back to DefaultMilestones.
func NewRenewalPlanner(milestones []Milestone) *RenewalPlanner {
	if len(milestones) == 0 {
		milestones = DefaultMilestones
	}
	sorted := make([]Milestone, 0, len(milestones))
	seen := make(map[int]bool, len(milestones))
	for _, m := range milestones {
		if m.DaysBefore <= 0 || seen[m.DaysBefore] {
			continue
		}
		seen[m.DaysBefore] = true
		sorted = append(sorted, m)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DaysBefore > sorted[j].DaysBefore })
	return &RenewalPlanner{milestones: sorted}
}

func (p *RenewalPlanner) Milestones() []Milestone {
	out := make([]Milestone, len(p.milestones))
	copy(out, p.milestones)
	return out
}

// Plan returns the reminders a policy should carry. Due dates already in the past
// are still planned; flagging them as overdue is the task list's job.
func (p *RenewalPlanner) Plan(policyID string, endDate *time.Time, status policy.Status) []PlannedTask {
	if endDate == nil || status.SuppressesRenewals() {
		return nil
	}
	expiry := calendar.StartOfDay(*endDate)
	planned := make([]PlannedTask, 0, len(p.milestones))
	for _, m := range p.milestones {
		planned = append(planned, PlannedTask{
			PolicyID:   policyID,
			DaysBefore: m.DaysBefore,
			DueDate:    calendar.DaysBefore(expiry, m.DaysBefore),
			Priority:   m.Priority,
			Title:      renewalTitle(m.DaysBefore, expiry),
		})
	}
	return planned
}

// PlanForPolicy is Plan applied to a loaded policy.
func (p *RenewalPlanner) PlanForPolicy(pol *policy.Policy) []PlannedTask {
	return p.Plan(pol.ID, pol.EndDate, pol.Status)
}

func renewalTitle(daysBefore int, expiry time.Time) string {
	return fmt.Sprintf("Policy renewal: %d days until expiry (%s)", daysBefore, expiry.Format("2006-01-02"))
}
