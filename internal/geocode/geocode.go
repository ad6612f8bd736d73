// Package geocode defines the geocoding boundary consumed by the
// nearest-carpark pipeline.
package geocode

import (
	"context"
	"errors"

	"github.com/parkscout/parkscout/internal/geo"
)

// Geocoding errors.
var (
	// ErrNoMatch is returned when the provider finds no result for an
	// address. It is terminal for the query: callers must surface it, never
	// substitute a default coordinate. Distinct from an empty carpark ranking.
	ErrNoMatch = errors.New("no geocoding match for address")

	// ErrUnavailable is returned when the geocoding provider cannot be
	// reached or fails. Never silently replaced with stale or default data.
	ErrUnavailable = errors.New("geocoding provider unavailable")
)

// Result is a geocoded address.
type Result struct {
	Coordinate geo.Coordinate `json:"coordinate"`

	// Address is the provider's formatted address for the match.
	Address string `json:"address,omitempty"`
}

// Geocoder resolves a free-text address to its single best-match coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Result, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}
