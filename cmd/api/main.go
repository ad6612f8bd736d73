// Package main provides the entrypoint for the ParkScout API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkscout/parkscout/internal/api"
	"github.com/parkscout/parkscout/internal/api/handler"
	"github.com/parkscout/parkscout/internal/api/middleware"
	"github.com/parkscout/parkscout/internal/carpark"
	"github.com/parkscout/parkscout/internal/config"
	"github.com/parkscout/parkscout/internal/database"
	"github.com/parkscout/parkscout/internal/geocode/onemap"
	"github.com/parkscout/parkscout/internal/render/leaflet"
	"github.com/parkscout/parkscout/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "parkscout-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting ParkScout API")

	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTELEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	// Dataset source: CSV snapshot on disk, or the Postgres snapshot the
	// worker maintains.
	var source carpark.Source
	switch cfg.DatasetSource {
	case "postgres":
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		source = carpark.NewPostgresRepository(pool)
	default:
		source = carpark.FileSource{Path: cfg.DatasetPath}
		log.Info().Str("path", cfg.DatasetPath).Msg("using file dataset source")
	}

	carparkService := carpark.NewService(carpark.ServiceConfig{
		Source:   source,
		Logger:   log,
		Metrics:  providerMetrics,
		CacheTTL: cfg.CacheTTL,
	})

	// Warm the cache so readiness reflects dataset availability.
	if _, err := carparkService.Snapshot(ctx); err != nil {
		log.Warn().Err(err).Msg("initial dataset load failed, continuing degraded")
	}

	// OneMap geocoder
	tokens := onemap.NewTokenSource(onemap.TokenSourceConfig{
		Email:    cfg.OneMapEmail,
		Password: cfg.OneMapPassword,
		TokenURL: oneMapTokenURL(cfg.OneMapBaseURL),
		Logger:   log,
	})
	geocoder := onemap.NewClient(onemap.ClientConfig{
		Tokens:  tokens,
		BaseURL: cfg.OneMapBaseURL,
		Logger:  log,
	})
	log.Info().Msg("geocoder initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		CarparkService: carparkService,
		Geocoder:       geocoder,
		Renderer:       leaflet.NewRenderer(),
		Carparks: handler.CarparkHandlerConfig{
			ProviderMetrics: providerMetrics,
			DefaultK:        cfg.DefaultK,
			MaxK:            cfg.MaxK,
			GeocodeTimeout:  cfg.GeocodeTimeout,
		},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// oneMapTokenURL derives the token endpoint for an overridden base URL.
func oneMapTokenURL(baseURL string) string {
	if baseURL == "" {
		return ""
	}
	return baseURL + "/api/auth/post/getToken"
}
