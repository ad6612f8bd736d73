// Package api provides the HTTP API for ParkScout.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/parkscout/parkscout/internal/api/handler"
	"github.com/parkscout/parkscout/internal/api/middleware"
	"github.com/parkscout/parkscout/internal/carpark"
	"github.com/parkscout/parkscout/internal/geocode"
	"github.com/parkscout/parkscout/internal/render"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	CarparkService *carpark.Service
	Geocoder       geocode.Geocoder
	Renderer       render.Renderer

	// Carpark handler tuning; zero values fall back to handler defaults.
	Carparks handler.CarparkHandlerConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "parkscout-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)

	carparkCfg := cfg.Carparks
	carparkCfg.Carparks = cfg.CarparkService
	carparkCfg.Geocoder = cfg.Geocoder
	carparkCfg.Renderer = cfg.Renderer

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.CarparkService)
	carparkHandler := handler.NewCarparkHandler(carparkCfg)

	// Nearest lookups may call the geocoding provider on every request,
	// so they carry the tighter limit.
	geocodeRateLimit := middleware.RateLimitByIP(middleware.GeocodeRateLimit)   // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		r.Route("/carparks", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", carparkHandler.List)

			r.Route("/nearest", func(r chi.Router) {
				r.Use(geocodeRateLimit)
				r.Get("/", carparkHandler.Nearest)
				r.Get("/map", carparkHandler.NearestMap)
			})
		})
	})

	return r
}
