// Package handler provides HTTP handlers for the ParkScout API.
package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/parkscout/parkscout/internal/api/middleware"
	"github.com/parkscout/parkscout/internal/api/models"
	"github.com/parkscout/parkscout/internal/api/response"
	"github.com/parkscout/parkscout/internal/carpark"
	"github.com/parkscout/parkscout/internal/geo"
	"github.com/parkscout/parkscout/internal/geocode"
	"github.com/parkscout/parkscout/internal/render"
)

// CarparkHandler handles carpark resolution endpoints.
type CarparkHandler struct {
	carparks        *carpark.Service
	geocoder        geocode.Geocoder
	renderer        render.Renderer
	providerMetrics *middleware.ProviderMetrics

	defaultK       int
	maxK           int
	geocodeTimeout time.Duration
}

// CarparkHandlerConfig holds configuration for the carpark handler.
type CarparkHandlerConfig struct {
	Carparks *carpark.Service
	Geocoder geocode.Geocoder
	Renderer render.Renderer

	// ProviderMetrics is optional; when nil no provider metrics are recorded.
	ProviderMetrics *middleware.ProviderMetrics

	// DefaultK is the result count when the k parameter is absent.
	// Default: 10.
	DefaultK int

	// MaxK caps the k parameter. Default: 30.
	MaxK int

	// GeocodeTimeout bounds the geocoding call. Default: 10s.
	GeocodeTimeout time.Duration
}

// NewCarparkHandler creates a new CarparkHandler.
func NewCarparkHandler(cfg CarparkHandlerConfig) *CarparkHandler {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 10
	}
	if cfg.MaxK <= 0 {
		cfg.MaxK = 30
	}
	if cfg.GeocodeTimeout <= 0 {
		cfg.GeocodeTimeout = 10 * time.Second
	}
	return &CarparkHandler{
		carparks:        cfg.Carparks,
		geocoder:        cfg.Geocoder,
		renderer:        cfg.Renderer,
		providerMetrics: cfg.ProviderMetrics,
		defaultK:        cfg.DefaultK,
		maxK:            cfg.MaxK,
		geocodeTimeout:  cfg.GeocodeTimeout,
	}
}

// nearestQuery is the parsed and validated query for a nearest lookup.
type nearestQuery struct {
	destination geo.Coordinate
	address     string
	k           int
}

// Nearest handles GET /v1/carparks/nearest.
// The destination is given either as an address (geocoded via OneMap) or as
// explicit lat/lon parameters.
func (h *CarparkHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	query, ok := h.resolveQuery(w, r)
	if !ok {
		return
	}

	results, snapshot, err := h.carparks.Nearest(r.Context(), query.destination, query.k)
	if err != nil {
		h.writeNearestError(w, r, err)
		return
	}

	out := models.NearestResponse{
		Destination: models.FromCoordinate(query.destination),
		Address:     query.address,
		K:           query.k,
		Results:     make([]models.NearestCarpark, 0, len(results)),
		Warnings:    models.FromWarnings(snapshot.Warnings),
		FetchedAt:   models.Timestamp(snapshot.FetchedAt),
	}
	for _, res := range results {
		out.Results = append(out.Results, models.FromRanked(res))
	}

	response.JSON(w, r, http.StatusOK, out)
}

// NearestMap handles GET /v1/carparks/nearest/map.
// Renders the resolved destination and its nearest carparks as an
// interactive HTML map.
func (h *CarparkHandler) NearestMap(w http.ResponseWriter, r *http.Request) {
	query, ok := h.resolveQuery(w, r)
	if !ok {
		return
	}

	results, snapshot, err := h.carparks.Nearest(r.Context(), query.destination, query.k)
	if err != nil {
		h.writeNearestError(w, r, err)
		return
	}

	var buf bytes.Buffer
	err = h.renderer.Render(&buf, render.MapView{
		Destination: query.destination,
		Address:     query.address,
		Nearest:     results,
		Carparks:    snapshot.Records,
	})
	if err != nil {
		response.InternalError(w, r, "failed to render map")
		return
	}

	response.HTML(w, r, http.StatusOK, buf.Bytes())
}

// List handles GET /v1/carparks - the full dataset snapshot.
func (h *CarparkHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.carparks.Snapshot(r.Context())
	if err != nil {
		response.ServiceUnavailable(w, r, "carpark dataset is unavailable")
		return
	}

	out := models.ListResponse{
		Carparks:  make([]models.Carpark, 0, len(snapshot.Records)),
		Total:     len(snapshot.Records),
		Eligible:  snapshot.EligibleCount(),
		Warnings:  models.FromWarnings(snapshot.Warnings),
		FetchedAt: models.Timestamp(snapshot.FetchedAt),
		Source:    snapshot.Source,
	}
	for _, rec := range snapshot.Records {
		out.Carparks = append(out.Carparks, models.FromRecord(rec))
	}

	response.JSON(w, r, http.StatusOK, out)
}

// resolveQuery parses the k parameter and resolves the destination from
// either the address or lat/lon query parameters. On failure it writes the
// error response and returns ok=false.
func (h *CarparkHandler) resolveQuery(w http.ResponseWriter, r *http.Request) (nearestQuery, bool) {
	var query nearestQuery

	query.k = h.defaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, r, "invalid query parameter", []models.FieldError{
				{Field: "k", Message: "must be an integer", Code: "INVALID_FORMAT"},
			})
			return query, false
		}
		if k < 1 {
			response.BadRequest(w, r, "invalid query parameter", []models.FieldError{
				{Field: "k", Message: "must be at least 1", Code: "OUT_OF_RANGE"},
			})
			return query, false
		}
		if k > h.maxK {
			k = h.maxK
		}
		query.k = k
	}

	address := r.URL.Query().Get("address")
	rawLat := r.URL.Query().Get("lat")
	rawLon := r.URL.Query().Get("lon")

	switch {
	case address != "":
		coord, resolved, ok := h.geocodeAddress(w, r, address)
		if !ok {
			return query, false
		}
		query.destination = coord
		query.address = resolved

	case rawLat != "" || rawLon != "":
		var fieldErrors []models.FieldError
		lat, err := strconv.ParseFloat(rawLat, 64)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field: "lat", Message: "must be a number", Code: "INVALID_FORMAT",
			})
		}
		lon, err := strconv.ParseFloat(rawLon, 64)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field: "lon", Message: "must be a number", Code: "INVALID_FORMAT",
			})
		}
		if len(fieldErrors) > 0 {
			response.BadRequest(w, r, "invalid destination", fieldErrors)
			return query, false
		}

		coord := geo.Coordinate{Lat: lat, Lon: lon}
		if err := coord.Validate(); err != nil {
			response.BadRequest(w, r, "invalid destination", []models.FieldError{
				{Field: "lat", Message: "lat must be in [-90, 90] and lon in [-180, 180]", Code: "OUT_OF_RANGE"},
			})
			return query, false
		}
		query.destination = coord

	default:
		response.BadRequest(w, r, "destination required", []models.FieldError{
			{Field: "address", Message: "provide address or lat/lon", Code: "REQUIRED"},
		})
		return query, false
	}

	return query, true
}

// geocodeAddress resolves an address via the configured geocoder. On failure
// it writes the error response and returns ok=false.
func (h *CarparkHandler) geocodeAddress(w http.ResponseWriter, r *http.Request, address string) (geo.Coordinate, string, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.geocodeTimeout)
	defer cancel()

	start := time.Now()
	result, err := h.geocoder.Geocode(ctx, address)
	if h.providerMetrics != nil {
		h.providerMetrics.RecordRequest(h.geocoder.Name(), "geocode", time.Since(start), err)
	}
	if err != nil {
		switch {
		case errors.Is(err, geocode.ErrNoMatch):
			response.NotFound(w, r, "address did not match any location")
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, geocode.ErrUnavailable):
			response.ServiceUnavailable(w, r, "geocoding service is unavailable")
		default:
			response.InternalError(w, r, "geocoding failed")
		}
		return geo.Coordinate{}, "", false
	}

	return result.Coordinate, result.Address, true
}

// writeNearestError maps resolution errors onto problem responses.
func (h *CarparkHandler) writeNearestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, carpark.ErrInvalidK):
		response.BadRequest(w, r, "invalid query parameter", []models.FieldError{
			{Field: "k", Message: "must be at least 1", Code: "OUT_OF_RANGE"},
		})
	case errors.Is(err, geo.ErrInvalidCoordinate):
		response.BadRequest(w, r, "invalid destination", nil)
	case errors.Is(err, carpark.ErrSourceUnavailable):
		response.ServiceUnavailable(w, r, "carpark dataset is unavailable")
	default:
		response.InternalError(w, r, "failed to resolve nearest carparks")
	}
}
