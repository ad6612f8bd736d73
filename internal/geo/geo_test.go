package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkscout/parkscout/internal/geo"
)

func TestCoordinate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		coord   geo.Coordinate
		wantErr bool
	}{
		{"valid singapore", geo.Coordinate{Lat: 1.3521, Lon: 103.8198}, false},
		{"valid extremes", geo.Coordinate{Lat: -90, Lon: 180}, false},
		{"origin", geo.Coordinate{}, false},
		{"latitude too high", geo.Coordinate{Lat: 90.001, Lon: 0}, true},
		{"latitude too low", geo.Coordinate{Lat: -90.001, Lon: 0}, true},
		{"longitude too high", geo.Coordinate{Lat: 0, Lon: 180.5}, true},
		{"longitude too low", geo.Coordinate{Lat: 0, Lon: -181}, true},
		{"nan latitude", geo.Coordinate{Lat: nan(), Lon: 0}, true},
		{"nan longitude", geo.Coordinate{Lat: 0, Lon: nan()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coord.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestDistanceKm_ZeroForIdenticalPoints(t *testing.T) {
	p := geo.Coordinate{Lat: 1.3000, Lon: 103.8000}
	assert.Zero(t, geo.DistanceKm(p, p))
}

func TestDistanceKm_Symmetric(t *testing.T) {
	a := geo.Coordinate{Lat: 1.3521, Lon: 103.8198}
	b := geo.Coordinate{Lat: 1.2801, Lon: 103.8509}

	d1 := geo.DistanceKm(a, b)
	d2 := geo.DistanceKm(b, a)

	assert.Positive(t, d1)
	assert.InDelta(t, d1, d2, 1e-6)
}

func TestDistanceKm_NonNegative(t *testing.T) {
	points := []geo.Coordinate{
		{Lat: 1.3521, Lon: 103.8198},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 51.5074, Lon: -0.1278},
		{Lat: 0, Lon: 0},
	}

	for _, a := range points {
		for _, b := range points {
			assert.GreaterOrEqual(t, geo.DistanceKm(a, b), 0.0)
		}
	}
}

func TestDistanceKm_KnownDistance(t *testing.T) {
	// Raffles Place to Changi Airport is roughly 17.6 km as the crow flies.
	raffles := geo.Coordinate{Lat: 1.2840, Lon: 103.8510}
	changi := geo.Coordinate{Lat: 1.3644, Lon: 103.9915}

	d := geo.DistanceKm(raffles, changi)
	assert.InDelta(t, 17.8, d, 0.5)
}

func TestDistanceKm_SmallOffsets(t *testing.T) {
	// One degree of latitude is about 111 km; 0.001 degrees about 111 m.
	a := geo.Coordinate{Lat: 1.3000, Lon: 103.8000}
	b := geo.Coordinate{Lat: 1.3010, Lon: 103.8000}

	d := geo.DistanceKm(a, b)
	assert.InDelta(t, 0.111, d, 0.002)
}
