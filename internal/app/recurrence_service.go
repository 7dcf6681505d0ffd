// internal/app/recurrence_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"agency_lifecycle/internal/domain/calendar"
	"agency_lifecycle/internal/domain/expense"
	"agency_lifecycle/internal/domain/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultRecurrenceWorkers = 4

// TenantFailure is one tenant whose transaction rolled back during a run.
type TenantFailure struct {
	TenantID string
	Err      error
}

// RunSummary is what one recurrence run did.
type RunSummary struct {
	RunDate            time.Time
	TenantsProcessed   int
	TemplatesProcessed int
	ChildrenCreated    int
	Skipped            int // templates no longer due when their transaction re-read them
	Failures           []TenantFailure
}

func (s RunSummary) HasFailures() bool { return len(s.Failures) > 0 }

type tenantOutcome struct {
	processed int
	created   int
	skipped   int
}

// RecurrenceService materialises due recurring expense templates. It is meant to
// be triggered by the scheduler once a day.
type RecurrenceService struct {
	tx      store.Transactor
	clock   calendar.Clock
	logger  *logrus.Entry
	workers int
	newID   func() string
}

func NewRecurrenceService(tx store.Transactor, clock calendar.Clock, workers int, logger *logrus.Entry) *RecurrenceService {
	if workers <= 0 {
		workers = defaultRecurrenceWorkers
	}
	return &RecurrenceService{
		tx:      tx,
		clock:   clock,
		logger:  logger.WithField("component", "recurrence_service"),
		workers: workers,
		newID:   uuid.NewString,
	}
}

// Run scans every tenant for due templates and processes each tenant in its own
// transaction. A failing tenant is reported in the summary and does not stop the
// others. Only a failed due-scan makes Run itself return an error.
//
// Templates advanced by an earlier run no longer match the due-scan, which is what
// keeps a second run on the same day from creating duplicates.
func (s *RecurrenceService) Run(ctx context.Context) (RunSummary, error) {
	today := calendar.Today(s.clock)
	summary := RunSummary{RunDate: today}

	due, err := s.tx.Repos().Expenses.ListDueTemplates(ctx, today)
	if err != nil {
		return summary, fmt.Errorf("scan due recurring expenses: %w", err)
	}
	groups := groupByTenant(due)
	if len(groups) == 0 {
		s.logger.WithField("run_date", today.Format("2006-01-02")).Info("No recurring expenses due")
		return summary, nil
	}

	tenantIDs := make([]string, 0, len(groups))
	for id := range groups {
		tenantIDs = append(tenantIDs, id)
	}
	sort.Strings(tenantIDs)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.workers)
	for _, tenantID := range tenantIDs {
		tenantID := tenantID
		templates := groups[tenantID]
		g.Go(func() error {
			outcome, err := s.processTenant(ctx, tenantID, templates, today)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				batchErr := &TenantBatchError{TenantID: tenantID, Templates: len(templates), Err: err}
				summary.Failures = append(summary.Failures, TenantFailure{TenantID: tenantID, Err: batchErr})
				s.logger.WithError(err).WithFields(logrus.Fields{
					"tenant_id": tenantID,
					"templates": len(templates),
				}).Error("Recurring expense batch rolled back for tenant")
				return nil
			}
			summary.TenantsProcessed++
			summary.TemplatesProcessed += outcome.processed
			summary.ChildrenCreated += outcome.created
			summary.Skipped += outcome.skipped
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are collected above

	sort.Slice(summary.Failures, func(i, j int) bool { return summary.Failures[i].TenantID < summary.Failures[j].TenantID })

	s.logger.WithFields(logrus.Fields{
		"run_date":            today.Format("2006-01-02"),
		"tenants_processed":   summary.TenantsProcessed,
		"templates_processed": summary.TemplatesProcessed,
		"children_created":    summary.ChildrenCreated,
		"skipped":             summary.Skipped,
		"failed_tenants":      len(summary.Failures),
	}).Info("Recurring expense run finished")
	return summary, nil
}

// processTenant creates one child per due template and advances the template in
// the same transaction. Each template is re-read under lock first, so an edit made
// after the scan is honoured.
func (s *RecurrenceService) processTenant(ctx context.Context, tenantID string, templates []*expense.Expense, today time.Time) (tenantOutcome, error) {
	var outcome tenantOutcome
	err := s.tx.RunInTx(ctx, func(repos store.Repositories) error {
		outcome = tenantOutcome{}
		for _, scanned := range templates {
			current, err := repos.Expenses.GetForUpdate(ctx, tenantID, scanned.ID)
			if errors.Is(err, expense.ErrNotFound) {
				outcome.skipped++
				continue
			}
			if err != nil {
				return fmt.Errorf("reload template %s: %w", scanned.ID, err)
			}
			if !current.IsDue(today) {
				outcome.skipped++
				continue
			}

			child, next, err := expense.MaterializeChild(current, s.newID())
			if err != nil {
				return fmt.Errorf("materialize template %s: %w", current.ID, err)
			}
			if err := repos.Expenses.Create(ctx, child); err != nil {
				return fmt.Errorf("create child of template %s: %w", current.ID, err)
			}
			if err := repos.Expenses.SetNextOccurrence(ctx, tenantID, current.ID, next); err != nil {
				return fmt.Errorf("advance template %s: %w", current.ID, err)
			}
			outcome.processed++
			outcome.created++

			s.logger.WithFields(logrus.Fields{
				"tenant_id":       tenantID,
				"template_id":     current.ID,
				"child_id":        child.ID,
				"occurrence":      child.Date.Format("2006-01-02"),
				"next_occurrence": next.Format("2006-01-02"),
			}).Debug("Recurring expense materialized")
		}
		return nil
	})
	if err != nil {
		return tenantOutcome{}, err
	}
	return outcome, nil
}

func groupByTenant(templates []*expense.Expense) map[string][]*expense.Expense {
	groups := make(map[string][]*expense.Expense)
	for _, t := range templates {
		groups[t.TenantID] = append(groups[t.TenantID], t)
	}
	return groups
}

// Report renders the summary as a short plain-text message for operators.
func (s RunSummary) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recurring expenses %s: %d created from %d templates across %d tenants",
		s.RunDate.Format("2006-01-02"), s.ChildrenCreated, s.TemplatesProcessed, s.TenantsProcessed)
	if s.Skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped", s.Skipped)
	}
	if len(s.Failures) > 0 {
		fmt.Fprintf(&b, "\n%d tenant(s) failed:", len(s.Failures))
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "\n- %s: %v", f.TenantID, f.Err)
		}
	}
	return b.String()
}
