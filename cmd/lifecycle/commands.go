package main

import (
	"context"
	"database/sql"
	"fmt"

	"agency_lifecycle/internal/app"
	"agency_lifecycle/internal/domain/alert"
	"agency_lifecycle/internal/domain/calendar"
	"agency_lifecycle/internal/infra/config"
	idb "agency_lifecycle/internal/infra/database"
	"agency_lifecycle/internal/infra/logger"
	"agency_lifecycle/internal/infra/scheduler"
	"agency_lifecycle/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lifecycle",
		Short:         "Policy renewal reminders and recurring expenses for insurance agencies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	recurrence := &cobra.Command{Use: "recurrence", Short: "Recurring expense jobs"}
	recurrence.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Materialise every recurring expense due today, once",
		RunE:  runRecurrence,
	})

	renewals := &cobra.Command{Use: "renewals", Short: "Renewal reminder jobs"}
	renewals.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Re-reconcile renewal tasks for every schedulable policy",
		RunE:  runSweep,
	})

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the daily scheduler (and the admin bot when configured) until interrupted",
			RunE:  runServe,
		},
		recurrence,
		renewals,
		newPolicyCmd(),
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE:  runMigrate,
		},
	)
	return root
}

// deps is everything a command needs, built from configuration.
type deps struct {
	cfg        *config.AppConfig
	db         *sql.DB
	renewals   *app.RenewalService
	recurrence *app.RecurrenceService
	lifecycle  *app.LifecycleService
}

func setup(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	log := logger.Get()
	log.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"timezone":    cfg.Location().String(),
	}).Info("Configuration loaded")

	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	log.Info("Database connection established successfully.")

	st := idb.NewStore(db)
	clock := calendar.SystemClock{Location: cfg.Location()}
	entry := logrus.NewEntry(log)
	renewals := app.NewRenewalService(st, app.NewRenewalPlanner(app.DefaultMilestones), entry)
	return &deps{
		cfg:        cfg,
		db:         db,
		renewals:   renewals,
		recurrence: app.NewRecurrenceService(st, clock, cfg.RecurrenceWorkers, entry),
		lifecycle:  app.NewLifecycleService(st, renewals, clock, entry),
	}, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.db.Close()

	if err := idb.Migrate(cmd.Context(), rt.db); err != nil {
		return err
	}
	logger.Get().Info("Database schema is up to date.")
	return nil
}

func runRecurrence(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.JobTimeout)
	defer cancel()
	summary, err := rt.recurrence.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), summary.Report())
	if summary.HasFailures() {
		return fmt.Errorf("%d tenant(s) failed", len(summary.Failures))
	}
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.JobTimeout)
	defer cancel()
	summary, err := rt.renewals.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), summary.Report())
	if summary.Failures > 0 {
		return fmt.Errorf("%d policies failed to reconcile", summary.Failures)
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.db.Close() // db.Close() after the scheduler drained
	log := logger.Get()

	var notifier alert.Notifier = alert.Nop{}
	var bot *telebot.Bot
	if rt.cfg.AlertsEnabled() {
		bot, err = telegram.NewBot(rt.cfg.TelegramToken, func(err error, c telebot.Context) {
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Telegram bot error")
		})
		if err != nil {
			// alerts are optional; keep serving without them
			log.WithError(err).Warn("Telegram alerts disabled")
		} else {
			notifier = telegram.NewNotifier(telegram.NewTelebotAdapter(bot), rt.cfg.AdminTelegramID, rt.cfg.Environment)
			telegram.RegisterAdminHandlers(ctx, bot,
				telegram.Services{Recurrence: rt.recurrence, Renewals: rt.renewals},
				rt.cfg.AdminTelegramID, logger.Component("telegram"))
			go bot.Start()
			log.Info("Telegram admin bot started.")
		}
	}

	sched := scheduler.NewLifecycleScheduler(
		rt.recurrence,
		rt.renewals,
		notifier,
		logrus.NewEntry(log),
		rt.cfg.Location(),
		scheduler.Specs{Recurrence: rt.cfg.CronSpecRecurrence, RenewalSweep: rt.cfg.CronSpecRenewalSweep},
		rt.cfg.JobTimeout,
	)
	if err := sched.Start(); err != nil {
		return err
	}
	log.Info("Application setup complete. Scheduler is running.")

	<-ctx.Done() // Block until a signal is received

	log.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	sched.Stop()
	log.Info("Application shut down gracefully.")
	return nil
}
