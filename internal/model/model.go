// Package model defines the domain types used across the application.
package model

import "time"

// Currency tags attached to scraped amounts.
const (
	CurrencyPLN        = "zł"
	CurrencyPLNMonthly = "zł/miesiac"
)

// Money is an integer amount tagged with its currency.
type Money struct {
	Amount   int
	Currency string
}

// Location is a heuristically split address. City is nil when the address
// does not name one.
type Location struct {
	City   *string
	Region string
}

// Offer is one normalized listing scraped from the upstream site.
// URL is the natural key; all pointer fields are optional.
type Offer struct {
	ID           int64
	URL          string
	Title        string
	Category     string
	SubCategory  string
	Location     *Location
	Photos       []string
	Price        *Money
	Rent         *Money
	Area         *float64
	Floor        *int
	RoomCount    *int
	HasFurniture *bool
	Description  *string
	CreatedAt    time.Time
}

// NotificationFilter is a saved search owned by a user.
type NotificationFilter struct {
	ID           int64
	UserID       string
	Category     *string
	SubCategory  *string
	BuildingType *string
	PriceMin     *float64
	PriceMax     *float64
	AreaMin      *float64
	AreaMax      *float64
	Rooms        *int
	Furniture    *bool
	Floor        *int
	Query        *string
	Active       bool
	CreatedAt    time.Time
}

// Notification is generated once per filter per matching run.
type Notification struct {
	ID        string
	UserID    string
	FilterID  int64
	Title     string
	Message   string
	OfferIDs  []int64
	CreatedAt time.Time
}

// Recipient holds the delivery addresses of a user.
type Recipient struct {
	UserID         string
	Email          string
	TelegramChatID int64
}
