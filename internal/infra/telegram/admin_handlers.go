package telegram

import (
	"context"
	"strings"

	"agency_lifecycle/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// AdminOperations are the batch jobs an admin may trigger by hand.
type AdminOperations interface {
	RunRecurrence(ctx context.Context) (app.RunSummary, error)
	SweepRenewals(ctx context.Context) (app.SweepSummary, error)
}

// Services adapts the app services to AdminOperations.
type Services struct {
	Recurrence *app.RecurrenceService
	Renewals   *app.RenewalService
}

func (s Services) RunRecurrence(ctx context.Context) (app.RunSummary, error) {
	return s.Recurrence.Run(ctx)
}

func (s Services) SweepRenewals(ctx context.Context) (app.SweepSummary, error) {
	return s.Renewals.Sweep(ctx)
}

const adminHelp = "Available admin commands:\n\n" +
	"/run_recurrence - materialise due recurring expenses now\n" +
	"/sweep_renewals - re-check renewal reminders for every policy\n" +
	"/help - show this message"

// RegisterAdminHandlers registers handlers for admin commands.
// Only adminTelegramID may use them.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, ops AdminOperations, adminTelegramID int64, baseLogger *logrus.Entry) {
	h := &adminHandler{ops: ops, adminID: adminTelegramID, logger: baseLogger.WithField("handler_group", "admin")}
	for _, cmd := range []string{"/start", "/help", "/run_recurrence", "/sweep_renewals"} {
		cmd := cmd
		b.Handle(cmd, func(c telebot.Context) error {
			return c.Send(h.reply(ctx, c.Sender().ID, cmd))
		})
	}
}

type adminHandler struct {
	ops     AdminOperations
	adminID int64
	logger  *logrus.Entry
}

func (h *adminHandler) reply(ctx context.Context, senderID int64, command string) string {
	handlerLogger := h.logger.WithFields(logrus.Fields{
		"handler":   command,
		"sender_id": senderID,
	})
	handlerLogger.Info("Command received")

	if senderID != h.adminID {
		handlerLogger.Warn("Unauthorized access attempt")
		return "You are not allowed to use this bot."
	}

	switch command {
	case "/start", "/help":
		return adminHelp
	case "/run_recurrence":
		summary, err := h.ops.RunRecurrence(ctx)
		if err != nil {
			handlerLogger.WithError(err).Error("Manual recurring expense run failed")
			return "Recurring expense run failed: " + err.Error()
		}
		return summary.Report()
	case "/sweep_renewals":
		summary, err := h.ops.SweepRenewals(ctx)
		if err != nil {
			handlerLogger.WithError(err).Error("Manual renewal sweep failed")
			return "Renewal sweep failed: " + err.Error()
		}
		return summary.Report()
	default:
		return "Unknown command. " + strings.SplitN(adminHelp, "\n", 2)[0]
	}
}
