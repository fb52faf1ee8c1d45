// Package dispatch delivers built notifications through interchangeable channels.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"offerwatch/internal/model"
)

// ErrNoAddress is returned by a channel when the recipient has no address
// for it. It is not retried.
var ErrNoAddress = errors.New("recipient has no address for channel")

// Channel delivers a notification to one recipient.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, to model.Recipient, n model.Notification) error
}

// RecipientResolver looks up the delivery addresses of a user.
type RecipientResolver interface {
	GetRecipient(ctx context.Context, userID string) (*model.Recipient, error)
}

// DispatchError reports a notification that could not be delivered.
type DispatchError struct {
	NotificationID string
	Channel        string
	Err            error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch notification %s via %s: %v", e.NotificationID, e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Options tunes delivery retries.
type Options struct {
	Retries uint64
	Backoff time.Duration
}

// Dispatcher holds the selected channel and forwards notifications to it.
// The channel can be swapped at any time with SetChannel.
type Dispatcher struct {
	mu         sync.RWMutex
	channel    Channel
	recipients RecipientResolver
	opts       Options
	log        *slog.Logger
}

// NewDispatcher creates a Dispatcher that sends through ch.
func NewDispatcher(ch Channel, recipients RecipientResolver, opts Options, log *slog.Logger) *Dispatcher {
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	return &Dispatcher{
		channel:    ch,
		recipients: recipients,
		opts:       opts,
		log:        log,
	}
}

// SetChannel replaces the channel used by subsequent sends.
func (d *Dispatcher) SetChannel(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channel = ch
}

// Channel returns the currently selected channel.
func (d *Dispatcher) Channel() Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.channel
}

// Send resolves the owner of n and delivers it through the current channel,
// retrying failed attempts with exponential backoff. It returns only after
// the last attempt finished. Failures are returned as *DispatchError.
func (d *Dispatcher) Send(ctx context.Context, n model.Notification) error {
	ch := d.Channel()
	if ch == nil {
		return &DispatchError{NotificationID: n.ID, Channel: "none", Err: errors.New("no channel configured")}
	}

	to, err := d.recipients.GetRecipient(ctx, n.UserID)
	if err != nil {
		return &DispatchError{NotificationID: n.ID, Channel: ch.Name(), Err: fmt.Errorf("resolve recipient: %w", err)}
	}

	attempt := 0
	b := retry.WithMaxRetries(d.opts.Retries, retry.NewExponential(d.opts.Backoff))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := ch.Deliver(ctx, *to, n); err != nil {
			if errors.Is(err, ErrNoAddress) {
				return err
			}
			d.log.Warn("deliver notification", "notification_id", n.ID, "channel", ch.Name(), "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return &DispatchError{NotificationID: n.ID, Channel: ch.Name(), Err: err}
	}

	d.log.Debug("notification delivered", "notification_id", n.ID, "channel", ch.Name(), "user_id", n.UserID)
	return nil
}
