package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"offerwatch/internal/model"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueConfig holds broker settings.
type QueueConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// QueueChannel publishes notifications to a message broker for in-app
// delivery by downstream consumers.
type QueueChannel struct {
	pub        publisher
	conn       *amqp.Connection
	exchange   string
	routingKey string
}

type queuePayload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FilterID  int64     `json:"filter_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	OfferIDs  []int64   `json:"offer_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// NewQueueChannel connects to the broker and opens a publishing channel.
func NewQueueChannel(cfg QueueConfig) (*QueueChannel, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	return &QueueChannel{pub: ch, conn: conn, exchange: cfg.Exchange, routingKey: cfg.RoutingKey}, nil
}

// Name implements Channel.
func (c *QueueChannel) Name() string { return "queue" }

// Deliver implements Channel.
func (c *QueueChannel) Deliver(ctx context.Context, to model.Recipient, n model.Notification) error {
	body, err := json.Marshal(queuePayload{
		ID:        n.ID,
		UserID:    to.UserID,
		FilterID:  n.FilterID,
		Title:     n.Title,
		Message:   n.Message,
		OfferIDs:  n.OfferIDs,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	err = c.pub.PublishWithContext(ctx, c.exchange, c.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close closes the broker connection.
func (c *QueueChannel) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
