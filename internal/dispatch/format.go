package dispatch

import (
	"fmt"
	"strings"

	"offerwatch/internal/model"
)

// FormatNotification renders a notification as a plain-text message body.
func FormatNotification(n model.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n\n", n.Title)
	b.WriteString(n.Message)
	if len(n.OfferIDs) > 0 {
		b.WriteString("\n\nOffers:")
		for _, id := range n.OfferIDs {
			fmt.Fprintf(&b, " #%d", id)
		}
	}
	return b.String()
}
