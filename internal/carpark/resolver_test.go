package carpark_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkscout/parkscout/internal/carpark"
	"github.com/parkscout/parkscout/internal/geo"
)

func record(id string, lat, lon float64) carpark.Record {
	return carpark.Record{
		ID:            id,
		Coordinate:    geo.Coordinate{Lat: lat, Lon: lon},
		HasCoordinate: true,
		Lots: map[carpark.LotType]carpark.Availability{
			carpark.LotTypeCar: {Total: 100, Available: 42},
		},
	}
}

func ineligibleRecord(id string) carpark.Record {
	return carpark.Record{
		ID:               id,
		IneligibleReason: "invalid latitude",
		Lots:             map[carpark.LotType]carpark.Availability{},
	}
}

func TestNearest_OrdersByDistance(t *testing.T) {
	destination := geo.Coordinate{Lat: 1.3000, Lon: 103.8000}
	// A ~0.11 km, C ~0.56 km, B ~1.11 km from the destination.
	records := []carpark.Record{
		record("A", 1.3010, 103.8000),
		record("B", 1.3100, 103.8000),
		record("C", 1.2950, 103.8000),
	}

	results, err := carpark.Nearest(destination, records, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "A", results[0].Record.ID)
	assert.Equal(t, "C", results[1].Record.ID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
	assert.Less(t, results[0].DistanceKm, results[1].DistanceKm)
	assert.InDelta(t, 0.111, results[0].DistanceKm, 0.005)
	assert.InDelta(t, 0.556, results[1].DistanceKm, 0.005)
}

func TestNearest_KLargerThanEligibleSet(t *testing.T) {
	destination := geo.Coordinate{Lat: 1.3000, Lon: 103.8000}
	records := []carpark.Record{
		record("A", 1.3010, 103.8000),
		record("B", 1.3100, 103.8000),
	}

	results, err := carpark.Nearest(destination, records, 50)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestNearest_ExcludesIneligibleRecords(t *testing.T) {
	destination := geo.Coordinate{Lat: 1.3000, Lon: 103.8000}
	records := []carpark.Record{
		ineligibleRecord("X"),
		record("A", 1.3010, 103.8000),
		ineligibleRecord("Y"),
	}

	results, err := carpark.Nearest(destination, records, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Record.ID)
}

func TestNearest_EmptyEligibleSetIsNotAnError(t *testing.T) {
	destination := geo.Coordinate{Lat: 1.3000, Lon: 103.8000}

	results, err := carpark.Nearest(destination, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = carpark.Nearest(destination, []carpark.Record{ineligibleRecord("X")}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNearest_InvalidK(t *testing.T) {
	destination := geo.Coordinate{Lat: 1.3000, Lon: 103.8000}
	records := []carpark.Record{record("A", 1.3010, 103.8000)}

	for _, k := range []int{0, -1, -100} {
		_, err := carpark.Nearest(destination, records, k)
		assert.ErrorIs(t, err, carpark.ErrInvalidK, "k=%d", k)
	}
}

func TestNearest_InvalidDestination(t *testing.T) {
	records := []carpark.Record{record("A", 1.3010, 103.8000)}

	_, err := carpark.Nearest(geo.Coordinate{Lat: 91, Lon: 0}, records, 1)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)

	_, err = carpark.Nearest(geo.Coordinate{Lat: 0, Lon: -200}, records, 1)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestNearest_TiesPreserveInputOrder(t *testing.T) {
	destination := geo.Coordinate{Lat: 1.3000, Lon: 103.8000}
	// Two carparks at the exact same point, equidistant from the destination.
	records := []carpark.Record{
		record("FIRST", 1.3050, 103.8000),
		record("SECOND", 1.3050, 103.8000),
		record("CLOSER", 1.3010, 103.8000),
	}

	results, err := carpark.Nearest(destination, records, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "CLOSER", results[0].Record.ID)
	assert.Equal(t, "FIRST", results[1].Record.ID)
	assert.Equal(t, "SECOND", results[2].Record.ID)
	assert.InDelta(t, results[1].DistanceKm, results[2].DistanceKm, 1e-9)
}

func TestNearest_Deterministic(t *testing.T) {
	destination := geo.Coordinate{Lat: 1.3000, Lon: 103.8000}
	records := []carpark.Record{
		record("A", 1.3010, 103.8000),
		record("B", 1.3010, 103.8000),
		record("C", 1.2900, 103.8050),
		record("D", 1.3100, 103.8000),
	}

	first, err := carpark.Nearest(destination, records, 4)
	require.NoError(t, err)
	second, err := carpark.Nearest(destination, records, 4)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNearest_DoesNotMutateInput(t *testing.T) {
	destination := geo.Coordinate{Lat: 1.3000, Lon: 103.8000}
	records := []carpark.Record{
		record("B", 1.3100, 103.8000),
		record("A", 1.3010, 103.8000),
	}

	_, err := carpark.Nearest(destination, records, 2)
	require.NoError(t, err)

	assert.Equal(t, "B", records[0].ID)
	assert.Equal(t, "A", records[1].ID)
}

func TestNearest_ResultLengthProperty(t *testing.T) {
	destination := geo.Coordinate{Lat: 1.3000, Lon: 103.8000}
	records := []carpark.Record{
		record("A", 1.3010, 103.8000),
		record("B", 1.3100, 103.8000),
		record("C", 1.2900, 103.8050),
		ineligibleRecord("X"),
	}
	eligible := 3

	for k := 1; k <= 6; k++ {
		results, err := carpark.Nearest(destination, records, k)
		require.NoError(t, err)

		want := k
		if eligible < k {
			want = eligible
		}
		assert.Len(t, results, want, "k=%d", k)

		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i-1].DistanceKm, results[i].DistanceKm)
		}
	}
}
