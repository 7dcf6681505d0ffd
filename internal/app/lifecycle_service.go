// internal/app/lifecycle_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agency_lifecycle/internal/domain/activity"
	"agency_lifecycle/internal/domain/calendar"
	"agency_lifecycle/internal/domain/policy"
	"agency_lifecycle/internal/domain/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Actor is the agent performing a mutation and the tenant it acts in. It is passed
// explicitly to every call.
type Actor struct {
	TenantID string
	UserID   string
}

// PolicyChanges lists the fields an update touches. Nil pointers leave a field
// alone; the Clear flags null out optional dates.
type PolicyChanges struct {
	Status         *policy.Status
	Type           *string
	PolicyNumber   *string
	Carrier        *string
	StartDate      *time.Time
	ClearStartDate bool
	EndDate        *time.Time
	ClearEndDate   bool
	Premium        *decimal.Decimal
	CoverageAmount *decimal.NullDecimal
	Deductible     *decimal.NullDecimal
}

// LifecycleService is the entry point for policy create/update/delete. The policy
// write and its activity entry commit together; renewal reminders are reconciled
// afterwards on a best-effort basis.
type LifecycleService struct {
	tx       store.Transactor
	renewals *RenewalService
	clock    calendar.Clock
	logger   *logrus.Entry
	newID    func() string
}

func NewLifecycleService(tx store.Transactor, renewals *RenewalService, clock calendar.Clock, logger *logrus.Entry) *LifecycleService {
	return &LifecycleService{
		tx:       tx,
		renewals: renewals,
		clock:    clock,
		logger:   logger.WithField("component", "lifecycle_service"),
		newID:    uuid.NewString,
	}
}

// OnPolicyCreate validates and stores a new policy, then generates its renewal
// reminders when it has an end date.
func (s *LifecycleService) OnPolicyCreate(ctx context.Context, actor Actor, p *policy.Policy) (*policy.Policy, error) {
	created := *p
	created.TenantID = actor.TenantID
	if created.ID == "" {
		created.ID = s.newID()
	}
	if created.Status == "" {
		created.Status = policy.StatusDraft
	}
	created.StartDate = normalizeDate(created.StartDate)
	created.EndDate = normalizeDate(created.EndDate)
	if err := validatePolicy(&created); err != nil {
		return nil, err
	}

	err := s.tx.RunInTx(ctx, func(repos store.Repositories) error {
		if err := repos.Policies.Create(ctx, &created); err != nil {
			return fmt.Errorf("create policy: %w", err)
		}
		s.recordActivity(ctx, repos, &activity.Event{
			TenantID:    actor.TenantID,
			ClientID:    created.ClientID,
			UserID:      actor.UserID,
			Type:        activity.TypePolicyCreated,
			Description: fmt.Sprintf("Policy %s created (%s)", policyLabel(&created), created.Status),
			Metadata: map[string]any{
				"policy_id": created.ID,
				"status":    string(created.Status),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"tenant_id": created.TenantID,
		"policy_id": created.ID,
		"status":    created.Status,
	}).Info("Policy created")

	if created.HasEndDate() {
		if _, err := s.renewals.GenerateTasksForPolicy(ctx, &created); err != nil {
			s.logSideEffectFailure(err, &created, "generate renewal tasks")
		}
	}
	return &created, nil
}

// OnPolicyUpdate applies changes to a policy. A status change is checked against
// the transition table first and an invalid one aborts the whole update.
func (s *LifecycleService) OnPolicyUpdate(ctx context.Context, actor Actor, policyID string, changes PolicyChanges) (*policy.Policy, error) {
	if changes.Status != nil && !changes.Status.Valid() {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("unknown status %q", *changes.Status)}}
	}

	var before, after policy.Policy
	err := s.tx.RunInTx(ctx, func(repos store.Repositories) error {
		current, err := repos.Policies.GetForUpdate(ctx, actor.TenantID, policyID)
		if err != nil {
			return fmt.Errorf("load policy %s: %w", policyID, err)
		}
		before = *current
		after = *current

		if changes.Status != nil && *changes.Status != current.Status {
			if err := policy.Transition(current.Status, *changes.Status); err != nil {
				return err
			}
		}
		applyChanges(&after, changes)
		if err := validatePolicy(&after); err != nil {
			return err
		}
		if err := repos.Policies.Update(ctx, &after); err != nil {
			return fmt.Errorf("update policy %s: %w", policyID, err)
		}

		if after.Status != before.Status {
			s.recordActivity(ctx, repos, &activity.Event{
				TenantID:    actor.TenantID,
				ClientID:    after.ClientID,
				UserID:      actor.UserID,
				Type:        activity.TypePolicyStatusChanged,
				Description: fmt.Sprintf("Policy %s status changed from %s to %s", policyLabel(&after), before.Status, after.Status),
				Metadata: map[string]any{
					"policy_id": after.ID,
					"from":      string(before.Status),
					"to":        string(after.Status),
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	statusChanged := after.Status != before.Status
	endDateChanged := !sameDate(before.EndDate, after.EndDate)
	s.logger.WithFields(logrus.Fields{
		"tenant_id":        after.TenantID,
		"policy_id":        after.ID,
		"status_changed":   statusChanged,
		"end_date_changed": endDateChanged,
	}).Info("Policy updated")

	switch {
	case statusChanged && after.Status.SuppressesRenewals():
		if _, err := s.renewals.DeleteRenewalTasksForPolicy(ctx, after.TenantID, after.ID); err != nil {
			s.logSideEffectFailure(err, &after, "delete renewal tasks")
		}
	case endDateChanged:
		if _, err := s.renewals.RegenerateRenewalTasks(ctx, &after); err != nil {
			s.logSideEffectFailure(err, &after, "regenerate renewal tasks")
		}
	}
	return &after, nil
}

// OnPolicyDelete removes a policy and, once that is committed, all of its renewal
// reminders.
func (s *LifecycleService) OnPolicyDelete(ctx context.Context, actor Actor, policyID string) error {
	var deleted policy.Policy
	err := s.tx.RunInTx(ctx, func(repos store.Repositories) error {
		current, err := repos.Policies.GetForUpdate(ctx, actor.TenantID, policyID)
		if err != nil {
			return fmt.Errorf("load policy %s: %w", policyID, err)
		}
		deleted = *current
		if err := repos.Policies.Delete(ctx, actor.TenantID, policyID); err != nil {
			return fmt.Errorf("delete policy %s: %w", policyID, err)
		}
		s.recordActivity(ctx, repos, &activity.Event{
			TenantID:    actor.TenantID,
			ClientID:    current.ClientID,
			UserID:      actor.UserID,
			Type:        activity.TypePolicyDeleted,
			Description: fmt.Sprintf("Policy %s deleted", policyLabel(current)),
			Metadata:    map[string]any{"policy_id": current.ID},
		})
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"tenant_id": actor.TenantID,
		"policy_id": policyID,
	}).Info("Policy deleted")

	if _, err := s.renewals.PurgeRenewalTasksForPolicy(ctx, actor.TenantID, policyID); err != nil {
		s.logSideEffectFailure(err, &deleted, "purge renewal tasks")
	}
	return nil
}

// recordActivity appends to the activity log inside the caller's transaction. A
// failure is logged and swallowed.
func (s *LifecycleService) recordActivity(ctx context.Context, repos store.Repositories, e *activity.Event) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock.Now()
	}
	if err := repos.Activity.Record(ctx, e); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"tenant_id": e.TenantID,
			"type":      e.Type,
		}).Warn("Failed to record activity; continuing")
	}
}

func (s *LifecycleService) logSideEffectFailure(err error, p *policy.Policy, action string) {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"tenant_id": p.TenantID,
		"policy_id": p.ID,
		"action":    action,
	}).Error("Renewal side effect failed; policy change kept")
}

func applyChanges(p *policy.Policy, c PolicyChanges) {
	if c.Status != nil {
		p.Status = *c.Status
	}
	if c.Type != nil {
		p.Type = *c.Type
	}
	if c.PolicyNumber != nil {
		p.PolicyNumber = *c.PolicyNumber
	}
	if c.Carrier != nil {
		p.Carrier = *c.Carrier
	}
	if c.ClearStartDate {
		p.StartDate = nil
	} else if c.StartDate != nil {
		p.StartDate = normalizeDate(c.StartDate)
	}
	if c.ClearEndDate {
		p.EndDate = nil
	} else if c.EndDate != nil {
		p.EndDate = normalizeDate(c.EndDate)
	}
	if c.Premium != nil {
		p.Premium = *c.Premium
	}
	if c.CoverageAmount != nil {
		p.CoverageAmount = *c.CoverageAmount
	}
	if c.Deductible != nil {
		p.Deductible = *c.Deductible
	}
}

func validatePolicy(p *policy.Policy) error {
	var problems []string
	if strings.TrimSpace(p.TenantID) == "" {
		problems = append(problems, "tenant is required")
	}
	if strings.TrimSpace(p.ClientID) == "" {
		problems = append(problems, "client is required")
	}
	if !p.Status.Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", p.Status))
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		problems = append(problems, "end date is before start date")
	}
	if p.Premium.IsNegative() {
		problems = append(problems, "premium cannot be negative")
	}
	if p.CoverageAmount.Valid && p.CoverageAmount.Decimal.IsNegative() {
		problems = append(problems, "coverage amount cannot be negative")
	}
	if p.Deductible.Valid && p.Deductible.Decimal.IsNegative() {
		problems = append(problems, "deductible cannot be negative")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := calendar.StartOfDay(*t)
	return &d
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return calendar.StartOfDay(*a).Equal(calendar.StartOfDay(*b))
}

func policyLabel(p *policy.Policy) string {
	if p.PolicyNumber != "" {
		return p.PolicyNumber
	}
	return p.ID
}

// IsUserFacing reports whether err should be shown to the agent as a rejected
// request rather than an internal failure.
func IsUserFacing(err error) bool {
	return errors.Is(err, policy.ErrInvalidTransition) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, policy.ErrNotFound)
}
