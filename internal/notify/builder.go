// Package notify assembles notification records from filter matches.
package notify

import (
	"fmt"

	"offerwatch/internal/model"
)

const anyCategory = "all categories"

// Build creates a notification for a filter and its matched offers. The
// offer ids keep the order of matches. Zero matches yield a valid
// notification with an empty id set.
func Build(f model.NotificationFilter, matches []model.Offer) model.Notification {
	label := CategoryLabel(f)
	ids := make([]int64, 0, len(matches))
	for _, o := range matches {
		ids = append(ids, o.ID)
	}
	return model.Notification{
		UserID:   f.UserID,
		FilterID: f.ID,
		Title:    fmt.Sprintf("New offers for %s", label),
		Message:  fmt.Sprintf("There are %d offers for %s", len(matches), label),
		OfferIDs: ids,
	}
}

// CategoryLabel names the filter's category for display.
func CategoryLabel(f model.NotificationFilter) string {
	if f.Category == nil || *f.Category == "" {
		return anyCategory
	}
	return *f.Category
}
