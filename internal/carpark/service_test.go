package carpark_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkscout/parkscout/internal/carpark"
	"github.com/parkscout/parkscout/internal/geo"
)

type stubSource struct {
	dataset *carpark.Dataset
	err     error
	calls   int
}

func (s *stubSource) Snapshot(_ context.Context) (*carpark.Dataset, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.dataset, nil
}

func testDataset() *carpark.Dataset {
	return &carpark.Dataset{
		Records: []carpark.Record{
			record("A", 1.3010, 103.8000),
			record("B", 1.3100, 103.8000),
		},
		FetchedAt: time.Now(),
		Source:    "stub",
	}
}

func TestService_SnapshotCachesWithinTTL(t *testing.T) {
	source := &stubSource{dataset: testDataset()}
	svc := carpark.NewService(carpark.ServiceConfig{
		Source:   source,
		Logger:   zerolog.Nop(),
		CacheTTL: time.Hour,
	})

	ctx := context.Background()
	first, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	second, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, source.calls)
}

func TestService_ServesStaleOnSourceError(t *testing.T) {
	source := &stubSource{dataset: testDataset()}
	svc := carpark.NewService(carpark.ServiceConfig{
		Source:          source,
		Logger:          zerolog.Nop(),
		CacheTTL:        time.Millisecond,
		StaleIfErrorTTL: time.Hour,
	})

	ctx := context.Background()
	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	source.err = carpark.ErrSourceUnavailable
	time.Sleep(5 * time.Millisecond)

	dataset, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stub", dataset.Source)
}

func TestService_ErrorWithoutCachedData(t *testing.T) {
	source := &stubSource{err: errors.New("boom")}
	svc := carpark.NewService(carpark.ServiceConfig{
		Source: source,
		Logger: zerolog.Nop(),
	})

	_, err := svc.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestService_Nearest(t *testing.T) {
	source := &stubSource{dataset: testDataset()}
	svc := carpark.NewService(carpark.ServiceConfig{
		Source: source,
		Logger: zerolog.Nop(),
	})

	results, dataset, err := svc.Nearest(context.Background(), geo.Coordinate{Lat: 1.3000, Lon: 103.8000}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Record.ID)
	require.NotNil(t, dataset)
	assert.Equal(t, "stub", dataset.Source)
}

func TestService_NearestRanksAndReportsSameSnapshot(t *testing.T) {
	source := &stubSource{dataset: testDataset()}
	svc := carpark.NewService(carpark.ServiceConfig{
		Source:   source,
		Logger:   zerolog.Nop(),
		CacheTTL: time.Nanosecond,
	})

	// With an immediately-expiring cache every call refreshes, so the
	// returned dataset must be the one the ranking used, not a re-read.
	_, first, err := svc.Nearest(context.Background(), geo.Coordinate{Lat: 1.3, Lon: 103.8}, 1)
	require.NoError(t, err)
	callsAfter := source.calls

	assert.Equal(t, 1, callsAfter)
	assert.Same(t, source.dataset, first)
}

func TestService_NearestPropagatesInvalidArgument(t *testing.T) {
	source := &stubSource{dataset: testDataset()}
	svc := carpark.NewService(carpark.ServiceConfig{
		Source: source,
		Logger: zerolog.Nop(),
	})

	_, _, err := svc.Nearest(context.Background(), geo.Coordinate{Lat: 1.3, Lon: 103.8}, 0)
	assert.ErrorIs(t, err, carpark.ErrInvalidK)
}

type stubCacheMetrics struct {
	hits, misses int
}

func (m *stubCacheMetrics) RecordCacheHit(_, _ string)  { m.hits++ }
func (m *stubCacheMetrics) RecordCacheMiss(_, _ string) { m.misses++ }

func TestService_SnapshotRecordsCacheMetrics(t *testing.T) {
	source := &stubSource{dataset: testDataset()}
	metrics := &stubCacheMetrics{}
	svc := carpark.NewService(carpark.ServiceConfig{
		Source:   source,
		Logger:   zerolog.Nop(),
		Metrics:  metrics,
		CacheTTL: time.Hour,
	})

	ctx := context.Background()
	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	_, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	_, err = svc.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, metrics.misses)
	assert.Equal(t, 2, metrics.hits)
}

func TestService_CacheStatus(t *testing.T) {
	source := &stubSource{dataset: testDataset()}
	svc := carpark.NewService(carpark.ServiceConfig{
		Source: source,
		Logger: zerolog.Nop(),
	})

	assert.False(t, svc.CacheStatus().HasData)

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	status := svc.CacheStatus()
	assert.True(t, status.HasData)
	assert.Equal(t, 2, status.RecordCount)
	assert.Equal(t, 2, status.Eligible)
}
