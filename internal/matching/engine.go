package matching

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"offerwatch/internal/model"
	"offerwatch/internal/notify"
	"offerwatch/internal/storage"
)

// Sender delivers a persisted notification.
type Sender interface {
	Send(ctx context.Context, n model.Notification) error
}

// Outcome reports what happened to one filter during a run.
type Outcome struct {
	FilterID       int64
	NotificationID string
	Matched        int
	Dispatched     bool
	Err            error
}

// Options tunes an Engine.
type Options struct {
	Parallelism int
	NotifyEmpty bool
}

// Engine runs every active filter through match, build, persist and dispatch.
type Engine struct {
	store   storage.Storage
	matcher *Matcher
	sender  Sender
	opts    Options
	log     *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(store storage.Storage, matcher *Matcher, sender Sender, opts Options, log *slog.Logger) *Engine {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Engine{
		store:   store,
		matcher: matcher,
		sender:  sender,
		opts:    opts,
		log:     log,
	}
}

// Run processes all active filters. Failures of individual filters are
// reported in their Outcome and do not stop the others. The returned error
// is set only when the filters cannot be listed.
func (e *Engine) Run(ctx context.Context) ([]Outcome, error) {
	filters, err := e.store.ListActiveFilters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active filters: %w", err)
	}

	outcomes := make([]Outcome, len(filters))
	var g errgroup.Group
	g.SetLimit(e.opts.Parallelism)
	for i, f := range filters {
		g.Go(func() error {
			outcomes[i] = e.runFilter(ctx, f)
			return nil
		})
	}
	_ = g.Wait()

	dispatched, failed := 0, 0
	for _, o := range outcomes {
		if o.Dispatched {
			dispatched++
		}
		if o.Err != nil {
			failed++
		}
	}
	e.log.Info("matching run finished", "filters", len(filters), "dispatched", dispatched, "failed", failed)

	return outcomes, nil
}

func (e *Engine) runFilter(ctx context.Context, f model.NotificationFilter) Outcome {
	out := Outcome{FilterID: f.ID}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	matches, err := e.matcher.Match(ctx, f)
	if err != nil {
		out.Err = fmt.Errorf("match filter %d: %w", f.ID, err)
		e.log.Error("match filter", "filter_id", f.ID, "error", err)
		return out
	}
	out.Matched = len(matches)

	n := notify.Build(f, matches)
	if err := e.store.CreateNotification(ctx, &n); err != nil {
		out.Err = fmt.Errorf("create notification: %w", err)
		e.log.Error("create notification", "filter_id", f.ID, "error", err)
		return out
	}
	out.NotificationID = n.ID

	if err := e.store.AttachOfferIDs(ctx, n.ID, n.OfferIDs); err != nil {
		out.Err = fmt.Errorf("attach offers: %w", err)
		e.log.Error("attach offers", "filter_id", f.ID, "notification_id", n.ID, "error", err)
		return out
	}

	if len(matches) == 0 && !e.opts.NotifyEmpty {
		e.log.Debug("no matches", "filter_id", f.ID, "notification_id", n.ID)
		return out
	}

	if err := e.sender.Send(ctx, n); err != nil {
		out.Err = err
		e.log.Error("dispatch notification", "filter_id", f.ID, "notification_id", n.ID, "error", err)
		return out
	}
	out.Dispatched = true
	return out
}
