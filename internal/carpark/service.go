package carpark

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkscout/parkscout/internal/geo"
)

// Source produces carpark dataset snapshots.
type Source interface {
	// Snapshot loads a complete carpark dataset.
	Snapshot(ctx context.Context) (*Dataset, error)
}

// FileSource loads datasets from a CSV file on disk.
type FileSource struct {
	Path string
}

// Snapshot implements Source.
func (s FileSource) Snapshot(_ context.Context) (*Dataset, error) {
	return LoadFile(s.Path)
}

// CacheMetrics records snapshot cache hits and misses.
type CacheMetrics interface {
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

// ServiceConfig holds configuration for the carpark service.
type ServiceConfig struct {
	// Source is the carpark dataset source.
	Source Source

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics is optional; when nil no cache metrics are recorded.
	Metrics CacheMetrics

	// CacheTTL is how long to cache a dataset snapshot (default: 1 minute,
	// matching the upstream availability feed's refresh cadence).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving a stale snapshot when the source fails
	// (default: 30 minutes). Stale serving is logged, never silent.
	StaleIfErrorTTL time.Duration
}

// Service provides cached access to the carpark dataset and nearest-carpark
// resolution against it. Each query ranks against an immutable snapshot.
type Service struct {
	source          Source
	logger          zerolog.Logger
	metrics         CacheMetrics
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration

	mu          sync.RWMutex
	dataset     *Dataset
	cacheExpiry time.Time
}

// NewService creates a new carpark service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 30 * time.Minute
	}

	return &Service{
		source:          cfg.Source,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
	}
}

// Snapshot returns the current carpark dataset, refreshing from the source
// when the cached copy has expired.
func (s *Service) Snapshot(ctx context.Context) (*Dataset, error) {
	s.mu.RLock()
	if s.dataset != nil && time.Now().Before(s.cacheExpiry) {
		dataset := s.dataset
		s.mu.RUnlock()
		if s.metrics != nil {
			s.metrics.RecordCacheHit("carparks", "snapshot")
		}
		return dataset, nil
	}
	s.mu.RUnlock()

	if s.metrics != nil {
		s.metrics.RecordCacheMiss("carparks", "snapshot")
	}
	return s.refresh(ctx)
}

// Nearest resolves the k carparks closest to the destination. It ranks
// against a single snapshot and returns it so callers read warnings and
// fetch time from the same dataset the ranking saw.
func (s *Service) Nearest(ctx context.Context, destination geo.Coordinate, k int) ([]RankedResult, *Dataset, error) {
	dataset, err := s.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	results, err := Nearest(destination, dataset.Records, k)
	if err != nil {
		return nil, nil, err
	}
	return results, dataset, nil
}

// Refresh forces a snapshot reload from the source.
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx)
	return err
}

// Invalidate clears the cached snapshot.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = nil
	s.cacheExpiry = time.Time{}
}

func (s *Service) refresh(ctx context.Context) (*Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if s.dataset != nil && time.Now().Before(s.cacheExpiry) {
		return s.dataset, nil
	}

	dataset, err := s.source.Snapshot(ctx)
	if err != nil {
		// Serve stale within the stale-if-error window, explicitly logged.
		if s.dataset != nil && time.Since(s.dataset.FetchedAt) < s.staleIfErrorTTL {
			s.logger.Warn().
				Err(err).
				Time("fetched_at", s.dataset.FetchedAt).
				Msg("dataset source failed, serving stale snapshot")
			return s.dataset, nil
		}
		return nil, fmt.Errorf("refreshing carpark dataset: %w", err)
	}

	if len(dataset.Warnings) > 0 {
		s.logger.Warn().
			Int("warnings", len(dataset.Warnings)).
			Str("source", dataset.Source).
			Msg("dataset loaded with integrity warnings")
	}

	s.dataset = dataset
	s.cacheExpiry = time.Now().Add(s.cacheTTL)

	s.logger.Info().
		Int("records", len(dataset.Records)).
		Int("eligible", dataset.EligibleCount()).
		Str("source", dataset.Source).
		Msg("carpark dataset refreshed")

	return dataset, nil
}

// CacheStatus reports the current cache state.
type CacheStatus struct {
	HasData     bool
	FetchedAt   time.Time
	ExpiresAt   time.Time
	IsExpired   bool
	RecordCount int
	Eligible    int
	Warnings    int
	Source      string
}

// CacheStatus returns information about the cached snapshot.
func (s *Service) CacheStatus() CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dataset == nil {
		return CacheStatus{}
	}

	return CacheStatus{
		HasData:     true,
		FetchedAt:   s.dataset.FetchedAt,
		ExpiresAt:   s.cacheExpiry,
		IsExpired:   time.Now().After(s.cacheExpiry),
		RecordCount: len(s.dataset.Records),
		Eligible:    s.dataset.EligibleCount(),
		Warnings:    len(s.dataset.Warnings),
		Source:      s.dataset.Source,
	}
}
