// Package carpark provides carpark dataset loading and nearest-carpark ranking.
package carpark

import (
	"errors"
	"time"

	"github.com/parkscout/parkscout/internal/geo"
)

// Package errors.
var (
	// ErrInvalidK is returned when a requested result count is not positive.
	ErrInvalidK = errors.New("result count must be at least 1")

	// ErrSourceUnavailable is returned when the dataset source cannot be read.
	ErrSourceUnavailable = errors.New("carpark dataset source unavailable")
)

// LotType categorizes parking lots with independent availability counts.
// The codes match the LTA DataMall feed.
type LotType string

const (
	LotTypeCar          LotType = "C"
	LotTypeHeavyVehicle LotType = "H"
	LotTypeMotorcycle   LotType = "Y"
	LotTypeUnknown      LotType = "?"
)

// Label returns a human-readable name for the lot type.
func (t LotType) Label() string {
	switch t {
	case LotTypeCar:
		return "Car"
	case LotTypeHeavyVehicle:
		return "Heavy Vehicle"
	case LotTypeMotorcycle:
		return "Motorcycle"
	default:
		return "Other"
	}
}

// Availability holds lot counts for one lot type at one carpark.
// Invariant: Available <= Total on every record produced by the loader.
type Availability struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}

// Record is a single carpark with its location and per-lot-type availability.
// A record without a usable coordinate stays in the dataset for listing and
// rendering but is excluded from distance ranking.
type Record struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Agency string `json:"agency,omitempty"`

	Coordinate    geo.Coordinate `json:"coordinate"`
	HasCoordinate bool           `json:"hasCoordinate"`

	// IneligibleReason explains why the record has no usable coordinate.
	IneligibleReason string `json:"ineligibleReason,omitempty"`

	Lots map[LotType]Availability `json:"lots"`
}

// TotalAvailable sums available lots across all lot types.
func (r Record) TotalAvailable() int {
	total := 0
	for _, a := range r.Lots {
		total += a.Available
	}
	return total
}

// RankedResult is a carpark scored against a destination.
type RankedResult struct {
	Record     Record  `json:"carpark"`
	DistanceKm float64 `json:"distanceKm"`
	Rank       int     `json:"rank"`
}

// RowWarning records a dataset row that was malformed or partially usable.
// Warnings are collected and reported; they never abort a load.
type RowWarning struct {
	Row    int    `json:"row"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Dataset is an immutable snapshot of the carpark set for one resolution.
// Records preserves input order, which is the tie-break order for ranking.
type Dataset struct {
	Records   []Record
	Warnings  []RowWarning
	FetchedAt time.Time
	Source    string
}

// EligibleCount returns the number of records usable for distance ranking.
func (d *Dataset) EligibleCount() int {
	n := 0
	for _, r := range d.Records {
		if r.HasCoordinate {
			n++
		}
	}
	return n
}

// Lookup returns the record with the given identifier.
func (d *Dataset) Lookup(id string) (Record, bool) {
	for _, r := range d.Records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}
