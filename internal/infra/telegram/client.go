// internal/infra/telegram/client.go
package telegram

import (
	"fmt"
	"time"

	"gopkg.in/telebot.v3"
)

// Client sends messages via a Telegram bot. It decouples alerting from the bot library.
type Client interface {
	SendMessage(recipientChatID int64, text string) error
}

// TelebotAdapter implements Client using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// NewBot creates a bot that long-polls for admin commands.
func NewBot(token string, onError func(error, telebot.Context)) (*telebot.Bot, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:   token,
		Poller:  &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: onError,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return bot, nil
}

// SendMessage sends a plain text message to a private chat.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string) error {
	recipient := &telebot.User{ID: recipientChatID}
	_, err := tba.bot.Send(recipient, text, &telebot.SendOptions{DisableWebPagePreview: true})
	return err
}
