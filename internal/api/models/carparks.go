// Package models provides request and response models for the ParkScout API.
package models

import (
	"time"

	"github.com/parkscout/parkscout/internal/carpark"
	"github.com/parkscout/parkscout/internal/geo"
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LotAvailability is the per-lot-type availability for a carpark.
type LotAvailability struct {
	LotType   string `json:"lotType"`
	Label     string `json:"label"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
}

// Carpark is the API representation of a single carpark.
type Carpark struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Agency string            `json:"agency,omitempty"`
	Point  *Point            `json:"point,omitempty"`
	Lots   []LotAvailability `json:"lots"`
}

// NearestCarpark is a carpark annotated with its rank and distance to the
// requested destination.
type NearestCarpark struct {
	Carpark
	Rank       int     `json:"rank"`
	DistanceKm float64 `json:"distanceKm"`
}

// NearestResponse is the response for GET /v1/carparks/nearest.
type NearestResponse struct {
	Destination Point            `json:"destination"`
	Address     string           `json:"address,omitempty"`
	K           int              `json:"k"`
	Results     []NearestCarpark `json:"results"`
	Warnings    []DatasetWarning `json:"warnings,omitempty"`
	FetchedAt   Timestamp        `json:"fetchedAt"`
}

// ListResponse is the response for GET /v1/carparks.
type ListResponse struct {
	Carparks  []Carpark        `json:"carparks"`
	Total     int              `json:"total"`
	Eligible  int              `json:"eligible"`
	Warnings  []DatasetWarning `json:"warnings,omitempty"`
	FetchedAt Timestamp        `json:"fetchedAt"`
	Source    string           `json:"source"`
}

// DatasetWarning surfaces a malformed dataset row to API clients.
type DatasetWarning struct {
	Row    int    `json:"row"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Timestamp is a helper type for time.Time with RFC3339 JSON formatting.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, string(data[1:len(data)-1]))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// FromCoordinate converts a domain coordinate into an API point.
func FromCoordinate(c geo.Coordinate) Point {
	return Point{Lat: c.Lat, Lon: c.Lon}
}

// FromRecord converts a domain carpark record into its API representation.
func FromRecord(rec carpark.Record) Carpark {
	out := Carpark{
		ID:     rec.ID,
		Name:   rec.Name,
		Agency: rec.Agency,
		Lots:   make([]LotAvailability, 0, len(rec.Lots)),
	}
	if rec.HasCoordinate {
		p := FromCoordinate(rec.Coordinate)
		out.Point = &p
	}
	for _, lt := range []carpark.LotType{
		carpark.LotTypeCar,
		carpark.LotTypeHeavyVehicle,
		carpark.LotTypeMotorcycle,
		carpark.LotTypeUnknown,
	} {
		avail, ok := rec.Lots[lt]
		if !ok {
			continue
		}
		out.Lots = append(out.Lots, LotAvailability{
			LotType:   string(lt),
			Label:     lt.Label(),
			Total:     avail.Total,
			Available: avail.Available,
		})
	}
	return out
}

// FromRanked converts a ranked domain result into its API representation.
func FromRanked(res carpark.RankedResult) NearestCarpark {
	return NearestCarpark{
		Carpark:    FromRecord(res.Record),
		Rank:       res.Rank,
		DistanceKm: res.DistanceKm,
	}
}

// FromWarnings converts domain row warnings into their API representation.
func FromWarnings(warnings []carpark.RowWarning) []DatasetWarning {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]DatasetWarning, len(warnings))
	for i, w := range warnings {
		out[i] = DatasetWarning{Row: w.Row, ID: w.ID, Reason: w.Reason}
	}
	return out
}
