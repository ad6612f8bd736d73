package handler

import (
	"net/http"
	"time"

	"github.com/parkscout/parkscout/internal/api/models"
	"github.com/parkscout/parkscout/internal/api/response"
	"github.com/parkscout/parkscout/internal/carpark"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	carparks  *carpark.Service
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, carparks *carpark.Service) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		carparks:  carparks,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// The service is ready once a carpark dataset snapshot is cached. A stale
// cache degrades readiness but does not fail it.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	readiness := models.Readiness{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.carparks != nil {
		status := h.carparks.CacheStatus()
		ds := models.DatasetStatus{
			Source:      status.Source,
			RecordCount: status.RecordCount,
			Eligible:    status.Eligible,
			Warnings:    status.Warnings,
			Stale:       status.IsExpired,
		}
		if !status.FetchedAt.IsZero() {
			fetched := models.Timestamp(status.FetchedAt)
			ds.FetchedAt = &fetched
		}
		if !status.ExpiresAt.IsZero() {
			expires := models.Timestamp(status.ExpiresAt)
			ds.ExpiresAt = &expires
		}
		readiness.Dataset = &ds

		switch {
		case !status.HasData:
			readiness.Status = models.HealthStatusFail
		case status.IsExpired:
			readiness.Status = models.HealthStatusDegraded
		}
	}

	code := http.StatusOK
	if readiness.Status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, readiness)
}
