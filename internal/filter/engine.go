// Package filter implements the offer refinement engine for saved searches.
package filter

import (
	"strings"

	"offerwatch/internal/model"
)

// Accept checks whether an offer satisfies every dimension the filter sets.
// Unset dimensions always pass. An offer missing a field fails any
// dimension that constrains it. BuildingType is not evaluated because
// offers do not carry it.
func Accept(offer model.Offer, f model.NotificationFilter) bool {
	if f.Category != nil && *f.Category != "" && offer.Category != *f.Category {
		return false
	}
	if f.SubCategory != nil && offer.SubCategory != *f.SubCategory {
		return false
	}
	if !priceInRange(offer.Price, f.PriceMin, f.PriceMax) {
		return false
	}
	if !floatInRange(offer.Area, f.AreaMin, f.AreaMax) {
		return false
	}
	if !intEquals(offer.RoomCount, f.Rooms) {
		return false
	}
	if !intEquals(offer.Floor, f.Floor) {
		return false
	}
	if f.Furniture != nil && (offer.HasFurniture == nil || *offer.HasFurniture != *f.Furniture) {
		return false
	}
	if f.Query != nil && !matchesQuery(offer, *f.Query) {
		return false
	}
	return true
}

// Apply returns the offers accepted by the filter, keeping their order.
func Apply(offers []model.Offer, f model.NotificationFilter) []model.Offer {
	var matched []model.Offer
	for _, o := range offers {
		if Accept(o, f) {
			matched = append(matched, o)
		}
	}
	return matched
}

func priceInRange(price *model.Money, minV, maxV *float64) bool {
	if minV == nil && maxV == nil {
		return true
	}
	if price == nil {
		return false
	}
	v := float64(price.Amount)
	return floatInRange(&v, minV, maxV)
}

func floatInRange(v, minV, maxV *float64) bool {
	if minV == nil && maxV == nil {
		return true
	}
	if v == nil {
		return false
	}
	if minV != nil && *v < *minV {
		return false
	}
	if maxV != nil && *v > *maxV {
		return false
	}
	return true
}

func intEquals(v, want *int) bool {
	if want == nil {
		return true
	}
	return v != nil && *v == *want
}

// matchesQuery reports whether every word of the query occurs in the
// offer's title, description or location, case-insensitively.
func matchesQuery(offer model.Offer, query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return true
	}
	text := searchText(offer)
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}

func searchText(offer model.Offer) string {
	parts := []string{offer.Title}
	if offer.Description != nil {
		parts = append(parts, *offer.Description)
	}
	if offer.Location != nil {
		if offer.Location.City != nil {
			parts = append(parts, *offer.Location.City)
		}
		parts = append(parts, offer.Location.Region)
	}
	return strings.ToLower(strings.Join(parts, " "))
}
