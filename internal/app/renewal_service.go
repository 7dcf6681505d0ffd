// internal/app/renewal_service.go
package app

import (
	"context"
	"fmt"

	"agency_lifecycle/internal/domain/policy"
	"agency_lifecycle/internal/domain/store"
	"agency_lifecycle/internal/domain/task"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const renewalTaskDescription = "Contact the client about renewing this policy before it expires."

// TaskOwner is the policy a set of renewal tasks belongs to.
type TaskOwner struct {
	TenantID string
	PolicyID string
	ClientID string
}

func ownerOf(p *policy.Policy) TaskOwner {
	return TaskOwner{TenantID: p.TenantID, PolicyID: p.ID, ClientID: p.ClientID}
}

// ReconcileResult counts the writes issued by one reconciliation.
type ReconcileResult struct {
	Created   int
	Updated   int
	Deleted   int
	Unchanged int
}

// Writes is the number of mutations; zero means the stored set already matched.
func (r ReconcileResult) Writes() int { return r.Created + r.Updated + r.Deleted }

func (r *ReconcileResult) add(o ReconcileResult) {
	r.Created += o.Created
	r.Updated += o.Updated
	r.Deleted += o.Deleted
	r.Unchanged += o.Unchanged
}

// SweepSummary reports a periodic re-reconciliation over all tenants.
type SweepSummary struct {
	PoliciesChecked int
	PoliciesChanged int
	Failures        int
	ReconcileResult
}

// RenewalService keeps each policy's renewal reminders equal to what the planner
// derives from its end date and status.
type RenewalService struct {
	tx      store.Transactor
	planner *RenewalPlanner
	logger  *logrus.Entry
	newID   func() string
}

func NewRenewalService(tx store.Transactor, planner *RenewalPlanner, logger *logrus.Entry) *RenewalService {
	if planner == nil {
		planner = NewRenewalPlanner(nil)
	}
	return &RenewalService{
		tx:      tx,
		planner: planner,
		logger:  logger.WithField("component", "renewal_service"),
		newID:   uuid.NewString,
	}
}

func (s *RenewalService) Planner() *RenewalPlanner { return s.planner }

// GenerateTasksForPolicy creates the reminders for a newly created policy.
func (s *RenewalService) GenerateTasksForPolicy(ctx context.Context, p *policy.Policy) (ReconcileResult, error) {
	return s.Reconcile(ctx, ownerOf(p), s.planner.PlanForPolicy(p))
}

// RegenerateRenewalTasks realigns reminders after the policy's end date changed.
func (s *RenewalService) RegenerateRenewalTasks(ctx context.Context, p *policy.Policy) (ReconcileResult, error) {
	return s.Reconcile(ctx, ownerOf(p), s.planner.PlanForPolicy(p))
}

// DeleteRenewalTasksForPolicy removes every open renewal task of a policy without
// planning. Completed reminders stay as history.
func (s *RenewalService) DeleteRenewalTasksForPolicy(ctx context.Context, tenantID, policyID string) (int, error) {
	n, err := s.tx.Repos().Tasks.DeleteRenewalByPolicy(ctx, tenantID, policyID, true)
	if err != nil {
		return 0, &ReconciliationError{TenantID: tenantID, PolicyID: policyID, Err: err}
	}
	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"policy_id": policyID,
		"deleted":   n,
	}).Info("Open renewal tasks deleted")
	return n, nil
}

// PurgeRenewalTasksForPolicy removes all renewal tasks, done ones included. Only
// used once the policy itself is gone.
func (s *RenewalService) PurgeRenewalTasksForPolicy(ctx context.Context, tenantID, policyID string) (int, error) {
	n, err := s.tx.Repos().Tasks.DeleteRenewalByPolicy(ctx, tenantID, policyID, false)
	if err != nil {
		return 0, &ReconciliationError{TenantID: tenantID, PolicyID: policyID, Err: err}
	}
	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"policy_id": policyID,
		"deleted":   n,
	}).Info("Renewal tasks purged for deleted policy")
	return n, nil
}

// Reconcile converges the stored renewal tasks of one policy onto planned, in a
// transaction of its own. Running it twice with the same plan writes nothing the
// second time.
//
// Done tasks are never modified or deleted. When several open tasks share a
// milestone the oldest one is kept and the rest are deleted.
func (s *RenewalService) Reconcile(ctx context.Context, owner TaskOwner, planned []PlannedTask) (ReconcileResult, error) {
	var result ReconcileResult
	err := s.tx.RunInTx(ctx, func(repos store.Repositories) error {
		result = ReconcileResult{}
		existing, err := repos.Tasks.ListRenewalByPolicy(ctx, owner.TenantID, owner.PolicyID)
		if err != nil {
			return fmt.Errorf("list renewal tasks: %w", err)
		}

		open := make(map[int]*task.Task)
		done := make(map[int]bool)
		for _, t := range existing {
			k := t.RenewalDaysBefore
			if t.Status.IsDone() {
				done[k] = true
				continue
			}
			if _, ok := open[k]; !ok {
				open[k] = t
				continue
			}
			if err := repos.Tasks.Delete(ctx, owner.TenantID, t.ID); err != nil {
				return fmt.Errorf("delete duplicate renewal task %s: %w", t.ID, err)
			}
			result.Deleted++
		}

		wanted := make(map[int]bool, len(planned))
		for _, p := range planned {
			wanted[p.DaysBefore] = true
			current, hasOpen := open[p.DaysBefore]
			switch {
			case hasOpen:
				if current.DueDate.Equal(p.DueDate) && current.Priority == p.Priority {
					result.Unchanged++
					continue
				}
				current.DueDate = p.DueDate
				current.Priority = p.Priority
				current.Title = p.Title
				if err := repos.Tasks.UpdateSchedule(ctx, current); err != nil {
					return fmt.Errorf("update renewal task %s: %w", current.ID, err)
				}
				result.Updated++
			case done[p.DaysBefore]:
				result.Unchanged++
			default:
				t := &task.Task{
					ID:                s.newID(),
					TenantID:          owner.TenantID,
					PolicyID:          owner.PolicyID,
					ClientID:          owner.ClientID,
					Title:             p.Title,
					Description:       renewalTaskDescription,
					Type:              task.TypeRenewal,
					Priority:          p.Priority,
					Status:            task.StatusTodo,
					DueDate:           p.DueDate,
					RenewalDaysBefore: p.DaysBefore,
				}
				if err := repos.Tasks.Create(ctx, t); err != nil {
					return fmt.Errorf("create renewal task (%d days): %w", p.DaysBefore, err)
				}
				result.Created++
			}
		}

		for k, t := range open {
			if wanted[k] {
				continue
			}
			if err := repos.Tasks.Delete(ctx, owner.TenantID, t.ID); err != nil {
				return fmt.Errorf("delete stale renewal task %s: %w", t.ID, err)
			}
			result.Deleted++
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, &ReconciliationError{TenantID: owner.TenantID, PolicyID: owner.PolicyID, Err: err}
	}

	entry := s.logger.WithFields(logrus.Fields{
		"tenant_id": owner.TenantID,
		"policy_id": owner.PolicyID,
		"created":   result.Created,
		"updated":   result.Updated,
		"deleted":   result.Deleted,
	})
	if result.Writes() > 0 {
		entry.Info("Renewal tasks reconciled")
	} else {
		entry.Debug("Renewal tasks already up to date")
	}
	return result, nil
}

// Sweep re-reconciles every schedulable policy in every tenant. It repairs drift
// left behind when a best-effort reconciliation failed after a policy edit.
func (s *RenewalService) Sweep(ctx context.Context) (SweepSummary, error) {
	var summary SweepSummary
	policies, err := s.tx.Repos().Policies.ListSchedulable(ctx)
	if err != nil {
		return summary, fmt.Errorf("list schedulable policies: %w", err)
	}
	for _, p := range policies {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.PoliciesChecked++
		res, err := s.Reconcile(ctx, ownerOf(p), s.planner.PlanForPolicy(p))
		if err != nil {
			summary.Failures++
			s.logger.WithError(err).WithField("policy_id", p.ID).Error("Renewal sweep failed for policy")
			continue
		}
		if res.Writes() > 0 {
			summary.PoliciesChanged++
		}
		summary.add(res)
	}
	s.logger.WithFields(logrus.Fields{
		"policies_checked": summary.PoliciesChecked,
		"policies_changed": summary.PoliciesChanged,
		"failures":         summary.Failures,
	}).Info("Renewal sweep finished")
	return summary, nil
}

func (s SweepSummary) Report() string {
	return fmt.Sprintf("Renewal sweep: %d policies checked, %d changed (%d created, %d updated, %d deleted), %d failed",
		s.PoliciesChecked, s.PoliciesChanged, s.Created, s.Updated, s.Deleted, s.Failures)
}
