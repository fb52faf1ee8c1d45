// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"offerwatch/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Page bounds a listing query.
type Page struct {
	Offset int
	Limit  int
}

// Storage is the interface for all persistence operations.
type Storage interface {
	SaveOffers(ctx context.Context, offers []model.Offer) error
	QueryOffers(ctx context.Context, category string, page Page) ([]model.Offer, error)
	CountOffers(ctx context.Context) (int, error)

	CreateFilter(ctx context.Context, f *model.NotificationFilter) error
	ListActiveFilters(ctx context.Context) ([]model.NotificationFilter, error)

	CreateNotification(ctx context.Context, n *model.Notification) error
	AttachOfferIDs(ctx context.Context, notificationID string, offerIDs []int64) error
	GetNotification(ctx context.Context, id string) (*model.Notification, error)

	UpsertRecipient(ctx context.Context, r model.Recipient) error
	GetRecipient(ctx context.Context, userID string) (*model.Recipient, error)

	Close() error
}
