package dispatch

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"offerwatch/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel delivers notifications as Telegram bot messages.
type TelegramChannel struct {
	api telegramAPI
}

// NewTelegramChannel creates a TelegramChannel with the given bot token.
func NewTelegramChannel(token string) (*TelegramChannel, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &TelegramChannel{api: api}, nil
}

// Name implements Channel.
func (c *TelegramChannel) Name() string { return "telegram" }

// Deliver implements Channel.
func (c *TelegramChannel) Deliver(_ context.Context, to model.Recipient, n model.Notification) error {
	if to.TelegramChatID == 0 {
		return fmt.Errorf("user %s: %w", to.UserID, ErrNoAddress)
	}

	msg := tgbotapi.NewMessage(to.TelegramChatID, FormatNotification(n))
	msg.DisableWebPagePreview = true
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
