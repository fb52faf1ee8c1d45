// Package ingest sweeps the listing site and stores every offer it finds.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"offerwatch/internal/extract"
	"offerwatch/internal/fetcher"
	"offerwatch/internal/model"
)

// PageFetcher downloads one results page.
type PageFetcher interface {
	Fetch(ctx context.Context, category, listingType string, page int) (string, error)
}

// OfferSaver persists a batch of offers.
type OfferSaver interface {
	SaveOffers(ctx context.Context, offers []model.Offer) error
}

// Options tunes a sweep.
type Options struct {
	// Retries bounds transient fetch retries per page.
	Retries uint64
	Backoff time.Duration
	// Parallelism bounds concurrently swept (category, type) pairs.
	Parallelism int
	// MaxPages stops a pair after that many pages. Zero means no limit.
	MaxPages int
}

// Driver runs ingestion sweeps. Each Run is independent.
type Driver struct {
	fetcher   PageFetcher
	extractor *extract.Extractor
	store     OfferSaver
	opts      Options
	log       *slog.Logger
}

// NewDriver creates a Driver.
func NewDriver(f PageFetcher, x *extract.Extractor, store OfferSaver, opts Options, log *slog.Logger) *Driver {
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Driver{
		fetcher:   f,
		extractor: x,
		store:     store,
		opts:      opts,
		log:       log,
	}
}

// Run sweeps every listing type and category pair and returns the number of
// offers stored. Fetch failures abandon only the affected pair. A storage
// failure or cancellation stops the sweep; offers from pages already saved
// are kept.
func (d *Driver) Run(ctx context.Context, categories, listingTypes []string) (int, error) {
	var total atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Parallelism)
	for _, lt := range listingTypes {
		for _, cat := range categories {
			g.Go(func() error {
				n, err := d.sweep(gctx, cat, lt)
				total.Add(int64(n))
				return err
			})
		}
	}
	err := g.Wait()

	count := int(total.Load())
	if err != nil {
		return count, err
	}
	if err := ctx.Err(); err != nil {
		return count, err
	}
	d.log.Info("ingestion finished", "offers", count)
	return count, nil
}

// sweep walks the pages of one pair in order. Page n+1 is only requested
// after page n reported a next page.
func (d *Driver) sweep(ctx context.Context, category, listingType string) (int, error) {
	log := d.log.With("category", category, "listing_type", listingType)
	stored := 0

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if d.opts.MaxPages > 0 && page > d.opts.MaxPages {
			log.Debug("page limit reached", "pages", d.opts.MaxPages)
			return stored, nil
		}

		content, err := d.fetch(ctx, category, listingType, page)
		if err != nil {
			if ctx.Err() != nil {
				return stored, ctx.Err()
			}
			log.Warn("abandon pair", "page", page, "error", err)
			return stored, nil
		}

		res, err := d.extractor.Extract(content, category, listingType)
		if err != nil {
			log.Warn("extract page", "page", page, "error", err)
			return stored, nil
		}
		if res.Skipped > 0 {
			log.Debug("skipped listings", "page", page, "count", res.Skipped)
		}

		if err := d.store.SaveOffers(ctx, res.Offers); err != nil {
			return stored, fmt.Errorf("save offers %s/%s page %d: %w", listingType, category, page, err)
		}
		stored += len(res.Offers)
		log.Debug("page ingested", "page", page, "offers", len(res.Offers))

		if !res.HasNext {
			return stored, nil
		}
	}
}

func (d *Driver) fetch(ctx context.Context, category, listingType string, page int) (string, error) {
	var content string
	b := retry.WithMaxRetries(d.opts.Retries, retry.NewExponential(d.opts.Backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		body, err := d.fetcher.Fetch(ctx, category, listingType, page)
		if err != nil {
			if fetcher.IsTransient(err) && !errors.Is(err, context.Canceled) {
				d.log.Debug("transient fetch failure", "category", category, "listing_type", listingType, "page", page, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		content = body
		return nil
	})
	return content, err
}
