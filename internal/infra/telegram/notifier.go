package telegram

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Telegram rejects longer messages.
const maxMessageLength = 4096

// Notifier delivers operator alerts to the admin chat. It implements alert.Notifier.
type Notifier struct {
	client      Client
	adminChatID int64
	prefix      string
}

func NewNotifier(client Client, adminChatID int64, environment string) *Notifier {
	prefix := "[agency-lifecycle]"
	if environment != "" {
		prefix = fmt.Sprintf("[agency-lifecycle/%s]", environment)
	}
	return &Notifier{client: client, adminChatID: adminChatID, prefix: prefix}
}

func (n *Notifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := truncate(n.prefix+" "+text, maxMessageLength)
	if err := n.client.SendMessage(n.adminChatID, msg); err != nil {
		return fmt.Errorf("send alert to admin chat %d: %w", n.adminChatID, err)
	}
	return nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
