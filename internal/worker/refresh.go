// Package worker provides background dataset refresh for ParkScout.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkscout/parkscout/internal/carpark"
)

// RefreshConfig holds configuration for the dataset refresh job.
type RefreshConfig struct {
	// Timeout is the timeout for a full refresh run.
	// Default: 60 seconds.
	Timeout time.Duration

	// OutputPath is the CSV file the snapshot is written to.
	// Empty disables the file artifact.
	OutputPath string
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Timeout: 60 * time.Second,
	}
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Logger zerolog.Logger

	// Source fetches the live carpark snapshot, typically the DataMall client.
	Source carpark.Source

	// Repository persists snapshots to Postgres. Optional.
	Repository *carpark.PostgresRepository
}

// RefreshJob fetches the carpark availability snapshot and persists it.
type RefreshJob struct {
	config     RefreshConfig
	logger     zerolog.Logger
	source     carpark.Source
	repository *carpark.PostgresRepository

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	LastRecordCount     int
	LastWarningCount    int
	TotalDuration       time.Duration
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if config.Timeout <= 0 {
		config.Timeout = DefaultRefreshConfig().Timeout
	}

	return &RefreshJob{
		config:     config,
		logger:     cfg.Logger,
		source:     cfg.Source,
		repository: cfg.Repository,
		metrics:    &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Records   int
	Eligible  int
	Warnings  int
	WroteFile bool
	Persisted bool
}

// Run executes one refresh: fetch the snapshot, write the CSV artifact, and
// persist to Postgres when configured.
func (j *RefreshJob) Run(ctx context.Context) (*RefreshResult, error) {
	startTime := time.Now()
	result := &RefreshResult{StartTime: startTime}

	runCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	j.logger.Info().Msg("starting dataset refresh")

	dataset, err := j.source.Snapshot(runCtx)
	if err != nil {
		j.recordRun(result, startTime, false)
		j.logger.Error().Err(err).Msg("dataset fetch failed")
		return result, fmt.Errorf("fetching snapshot: %w", err)
	}

	result.Records = len(dataset.Records)
	result.Eligible = dataset.EligibleCount()
	result.Warnings = len(dataset.Warnings)

	for _, warning := range dataset.Warnings {
		j.logger.Warn().
			Int("row", warning.Row).
			Str("carpark_id", warning.ID).
			Str("reason", warning.Reason).
			Msg("malformed dataset row")
	}

	if j.config.OutputPath != "" {
		if err := carpark.WriteFile(j.config.OutputPath, dataset); err != nil {
			j.recordRun(result, startTime, false)
			j.logger.Error().Err(err).Str("path", j.config.OutputPath).Msg("snapshot write failed")
			return result, fmt.Errorf("writing snapshot: %w", err)
		}
		result.WroteFile = true
	}

	if j.repository != nil {
		if err := j.repository.ReplaceSnapshot(runCtx, dataset); err != nil {
			j.recordRun(result, startTime, false)
			j.logger.Error().Err(err).Msg("snapshot persist failed")
			return result, fmt.Errorf("persisting snapshot: %w", err)
		}
		result.Persisted = true
	}

	j.recordRun(result, startTime, true)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("records", result.Records).
		Int("eligible", result.Eligible).
		Int("warnings", result.Warnings).
		Bool("wrote_file", result.WroteFile).
		Bool("persisted", result.Persisted).
		Msg("dataset refresh completed")

	return result, nil
}

// RunLoop runs refresh on an interval until the context is cancelled. A run
// is attempted immediately on start.
func (j *RefreshJob) RunLoop(ctx context.Context, interval time.Duration) error {
	if _, err := j.Run(ctx); err != nil {
		j.logger.Warn().Err(err).Msg("initial refresh failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil {
				j.logger.Warn().Err(err).Msg("scheduled refresh failed")
			}
		}
	}
}

func (j *RefreshJob) recordRun(result *RefreshResult, startTime time.Time, success bool) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	if success {
		j.metrics.SuccessfulRefresh++
	} else {
		j.metrics.FailedRefreshes++
	}
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.LastRecordCount = result.Records
	j.metrics.LastWarningCount = result.Warnings
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		LastRecordCount:     j.metrics.LastRecordCount,
		LastWarningCount:    j.metrics.LastWarningCount,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"last_record_count":     m.LastRecordCount,
		"last_warning_count":    m.LastWarningCount,
		"total_duration":        m.TotalDuration.String(),
	}
}
