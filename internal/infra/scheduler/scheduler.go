package scheduler

import (
	"context"
	"fmt"
	"time"

	"agency_lifecycle/internal/app"
	"agency_lifecycle/internal/domain/alert"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RecurrenceRunner is satisfied by *app.RecurrenceService.
type RecurrenceRunner interface {
	Run(ctx context.Context) (app.RunSummary, error)
}

// RenewalSweeper is satisfied by *app.RenewalService.
type RenewalSweeper interface {
	Sweep(ctx context.Context) (app.SweepSummary, error)
}

// Specs holds the cron expressions for the daily jobs.
type Specs struct {
	Recurrence   string // e.g., "0 2 * * *" (02:00 daily)
	RenewalSweep string // e.g., "30 2 * * *"
}

type LifecycleScheduler struct {
	cronEngine *cron.Cron
	recurrence RecurrenceRunner
	sweeper    RenewalSweeper
	notifier   alert.Notifier
	logger     *logrus.Entry
	specs      Specs
	jobTimeout time.Duration
}

func NewLifecycleScheduler(
	recurrence RecurrenceRunner,
	sweeper RenewalSweeper,
	notifier alert.Notifier,
	logger *logrus.Entry,
	loc *time.Location, // "today" for the jobs is evaluated in this zone
	specs Specs,
	jobTimeout time.Duration,
) *LifecycleScheduler {
	if notifier == nil {
		notifier = alert.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.WithField("component", "scheduler")
	cronLogger := cron.PrintfLogger(logger)
	return &LifecycleScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		recurrence: recurrence,
		sweeper:    sweeper,
		notifier:   notifier,
		logger:     logger,
		specs:      specs,
		jobTimeout: jobTimeout,
	}
}

// Start registers the jobs and starts the cron engine. An invalid spec is returned
// before anything runs.
func (s *LifecycleScheduler) Start() error {
	s.logger.Info("Starting lifecycle scheduler...")

	if _, err := s.cronEngine.AddFunc(s.specs.Recurrence, s.runRecurrence); err != nil {
		return fmt.Errorf("could not add recurring expense cron job: %w", err)
	}
	if _, err := s.cronEngine.AddFunc(s.specs.RenewalSweep, s.runRenewalSweep); err != nil {
		return fmt.Errorf("could not add renewal sweep cron job: %w", err)
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"recurrence_spec":    s.specs.Recurrence,
		"renewal_sweep_spec": s.specs.RenewalSweep,
	}).Info("Lifecycle scheduler started with jobs.")
	return nil
}

func (s *LifecycleScheduler) runRecurrence() {
	s.logger.Info("Cron job triggered for recurring expenses.")
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	summary, err := s.recurrence.Run(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Recurring expense run failed")
		s.alert(ctx, fmt.Sprintf("Recurring expense run failed: %v", err))
		return
	}
	if summary.HasFailures() {
		s.alert(ctx, summary.Report())
	}
}

func (s *LifecycleScheduler) runRenewalSweep() {
	s.logger.Info("Cron job triggered for renewal sweep.")
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	summary, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Renewal sweep failed")
		s.alert(ctx, fmt.Sprintf("Renewal sweep failed: %v", err))
		return
	}
	if summary.Failures > 0 {
		s.alert(ctx, summary.Report())
	}
}

// alert is best effort; a failed notification is only logged.
func (s *LifecycleScheduler) alert(ctx context.Context, text string) {
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.logger.WithError(err).Warn("Failed to send operator alert")
	}
}

func (s *LifecycleScheduler) Stop() {
	s.logger.Info("Stopping lifecycle scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Lifecycle scheduler gracefully stopped.")
}
