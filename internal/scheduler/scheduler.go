// Package scheduler triggers ingestion sweeps and matching runs on their own cadence.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"offerwatch/internal/matching"
)

// Ingester runs one ingestion sweep.
type Ingester interface {
	Run(ctx context.Context, categories, listingTypes []string) (int, error)
}

// MatchRunner runs one matching pass over all active filters.
type MatchRunner interface {
	Run(ctx context.Context) ([]matching.Outcome, error)
}

// Config holds the sweep targets and job intervals.
type Config struct {
	Categories     []string
	ListingTypes   []string
	IngestInterval time.Duration
	MatchInterval  time.Duration
}

// Scheduler periodically ingests offers and matches them against filters.
type Scheduler struct {
	ingester Ingester
	matcher  MatchRunner
	cfg      Config
	log      *slog.Logger
}

// New creates a Scheduler.
func New(ingester Ingester, matcher MatchRunner, cfg Config, log *slog.Logger) *Scheduler {
	if cfg.IngestInterval <= 0 {
		cfg.IngestInterval = 6 * time.Hour
	}
	if cfg.MatchInterval <= 0 {
		cfg.MatchInterval = time.Hour
	}
	return &Scheduler{
		ingester: ingester,
		matcher:  matcher,
		cfg:      cfg,
		log:      log,
	}
}

// Run starts both job loops, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		loop(ctx, s.cfg.IngestInterval, s.Ingest)
	}()
	go func() {
		defer wg.Done()
		loop(ctx, s.cfg.MatchInterval, s.Match)
	}()
	wg.Wait()
}

// loop runs job immediately and then on every tick. A run always completes
// before the next one starts.
func loop(ctx context.Context, every time.Duration, job func(context.Context) error) {
	_ = job(ctx)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = job(ctx)
		}
	}
}

// Ingest runs a single ingestion sweep.
func (s *Scheduler) Ingest(ctx context.Context) error {
	start := time.Now()
	n, err := s.ingester.Run(ctx, s.cfg.Categories, s.cfg.ListingTypes)
	if err != nil {
		s.log.Error("ingestion sweep", "offers", n, "error", err)
		return err
	}
	s.log.Info("ingestion sweep done", "offers", n, "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// Match runs a single matching pass.
func (s *Scheduler) Match(ctx context.Context) error {
	outcomes, err := s.matcher.Run(ctx)
	if err != nil {
		s.log.Error("matching run", "error", err)
		return err
	}

	sent := 0
	for _, o := range outcomes {
		if o.Err != nil {
			s.log.Warn("filter failed", "filter_id", o.FilterID, "notification_id", o.NotificationID, "error", o.Err)
			continue
		}
		if o.Dispatched {
			sent++
		}
	}
	if sent > 0 {
		s.log.Info("sent notifications", "count", sent)
	}
	return nil
}
