package dispatch

import (
	"context"
	"log/slog"

	"offerwatch/internal/model"
)

// LogChannel writes notifications to the application log.
type LogChannel struct {
	log *slog.Logger
}

// NewLogChannel creates a LogChannel.
func NewLogChannel(log *slog.Logger) *LogChannel {
	return &LogChannel{log: log}
}

// Name implements Channel.
func (c *LogChannel) Name() string { return "log" }

// Deliver implements Channel.
func (c *LogChannel) Deliver(_ context.Context, to model.Recipient, n model.Notification) error {
	c.log.Info("notification",
		"notification_id", n.ID,
		"user_id", to.UserID,
		"title", n.Title,
		"message", n.Message,
		"offers", len(n.OfferIDs),
	)
	return nil
}
