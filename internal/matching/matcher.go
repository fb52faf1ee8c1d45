// Package matching selects offers for saved filters and turns them into
// dispatched notifications.
package matching

import (
	"context"
	"fmt"

	"offerwatch/internal/filter"
	"offerwatch/internal/model"
	"offerwatch/internal/storage"
)

// DefaultPageSize caps the candidates considered per filter.
const DefaultPageSize = 100

// OfferQuerier retrieves category-scoped offers.
type OfferQuerier interface {
	QueryOffers(ctx context.Context, category string, page storage.Page) ([]model.Offer, error)
}

// Matcher draws candidate offers for a filter from storage.
type Matcher struct {
	offers   OfferQuerier
	pageSize int
	refine   bool
}

// NewMatcher creates a Matcher. When refine is set, every filter dimension is
// applied to the candidates; otherwise only the category scopes the result.
func NewMatcher(offers OfferQuerier, pageSize int, refine bool) *Matcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Matcher{offers: offers, pageSize: pageSize, refine: refine}
}

// Match returns the offers worth notifying about for f.
func (m *Matcher) Match(ctx context.Context, f model.NotificationFilter) ([]model.Offer, error) {
	var category string
	if f.Category != nil {
		category = *f.Category
	}

	candidates, err := m.offers.QueryOffers(ctx, category, storage.Page{Limit: m.pageSize})
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	if !m.refine {
		return candidates, nil
	}
	return filter.Apply(candidates, f), nil
}
