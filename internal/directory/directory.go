package directory

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when removing a contact that is not
	// registered at the given location.
	ErrNotFound = errors.New("contact not found")

	// ErrDuplicate is returned when adding a phone number that is
	// already registered at the same location.
	ErrDuplicate = errors.New("contact already registered at location")
)

// Contact is one registered recipient. Addresses are stored in E.164
// form; PreferredLanguage is a canonical code or empty for "no
// preference".
type Contact struct {
	Name              string    `json:"name"`
	Phone             string    `json:"phone_number"`
	Location          string    `json:"location"`
	Latitude          float64   `json:"latitude,omitempty"`
	Longitude         float64   `json:"longitude,omitempty"`
	PreferredLanguage string    `json:"preferred_language,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Directory maps location names to registered recipients.
//
// Lookup misses are a valid state, not an error: an unknown location
// simply has no one registered and yields an empty slice.
type Directory interface {
	// LookupByLocation returns all contacts registered at a location,
	// in registration order. Unknown location: empty slice, nil error.
	LookupByLocation(ctx context.Context, location string) ([]Contact, error)

	// AddContact registers a contact. The phone number is normalized
	// first; a number already present at the same location is rejected
	// with ErrDuplicate.
	AddContact(ctx context.Context, c Contact) (Contact, error)

	// RemoveContact unregisters a phone number from a location.
	RemoveContact(ctx context.Context, location, phone string) error

	// Locations returns all location names with at least one contact,
	// sorted.
	Locations(ctx context.Context) ([]string, error)

	Close() error
}
