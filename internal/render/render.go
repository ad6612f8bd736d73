// Package render defines the presentation boundary for ranked carpark results.
package render

import (
	"io"

	"github.com/parkscout/parkscout/internal/carpark"
	"github.com/parkscout/parkscout/internal/geo"
)

// MapView is everything a renderer needs to visualize one resolution:
// the destination, the ranked nearest carparks, and the full carpark set
// for context layers.
type MapView struct {
	// Destination is the geocoded query point.
	Destination geo.Coordinate

	// Address is the free-text destination the user searched for.
	Address string

	// Nearest is the ranked result list, ascending by distance.
	Nearest []carpark.RankedResult

	// Carparks is the full dataset, including ineligible records.
	Carparks []carpark.Record
}

// Renderer produces a display artifact from a map view. The core imposes no
// format beyond the view's fields; implementations choose the medium.
type Renderer interface {
	Render(w io.Writer, view MapView) error
}
