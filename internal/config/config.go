// Package config loads service configuration from config.env and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is the conventional location of the dotenv file.
const DefaultEnvFile = "config/config.env"

// Config holds configuration for the API server and worker.
type Config struct {
	// AppPort is the HTTP listen port.
	AppPort string

	// Environment is the deployment environment name.
	Environment string

	// DatasetPath is where the carpark CSV dataset lives.
	DatasetPath string

	// DatasetSource selects the API's dataset source: "file" or "postgres".
	DatasetSource string

	// DefaultK and MaxK bound the nearest-carpark result count.
	DefaultK int
	MaxK     int

	// OneMap geocoding credentials and endpoint.
	OneMapEmail    string
	OneMapPassword string
	OneMapBaseURL  string

	// LTA DataMall availability feed.
	DataMallAccountKey string
	DataMallBaseURL    string

	// RefreshInterval is the worker's dataset refresh cadence.
	RefreshInterval time.Duration

	// CacheTTL is how long the API caches a dataset snapshot.
	CacheTTL time.Duration

	// GeocodeTimeout bounds each geocoding request.
	GeocodeTimeout time.Duration

	// Pub/Sub refresh trigger (optional; empty disables it).
	PubSubProjectID    string
	PubSubSubscription string

	// OpenTelemetry.
	OTELEnabled  bool
	OTLPEndpoint string
}

// Load reads the dotenv file at path (missing file is not an error, matching
// environments where configuration is injected directly) and assembles a
// Config from the environment.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("loading %s: %w", path, err)
	}

	cfg := Config{
		AppPort:            envOrDefault("APP_PORT", "8080"),
		Environment:        envOrDefault("APP_ENV", "development"),
		DatasetPath:        envOrDefault("CARPARK_DATASET_PATH", "data/carpark_data.csv"),
		DatasetSource:      envOrDefault("CARPARK_DATASET_SOURCE", "file"),
		DefaultK:           envIntOrDefault("NEAREST_DEFAULT_K", 10),
		MaxK:               envIntOrDefault("NEAREST_MAX_K", 30),
		OneMapEmail:        os.Getenv("ONEMAP_EMAIL"),
		OneMapPassword:     os.Getenv("ONEMAP_PASSWORD"),
		OneMapBaseURL:      os.Getenv("ONEMAP_BASE_URL"),
		DataMallAccountKey: os.Getenv("LTA_DATAMALL_ACCOUNT_KEY"),
		DataMallBaseURL:    os.Getenv("LTA_DATAMALL_BASE_URL"),
		RefreshInterval:    envDurationOrDefault("REFRESH_INTERVAL", time.Minute),
		CacheTTL:           envDurationOrDefault("DATASET_CACHE_TTL", time.Minute),
		GeocodeTimeout:     envDurationOrDefault("GEOCODE_TIMEOUT", 10*time.Second),
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
		OTELEnabled:        os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:       envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	if cfg.DefaultK < 1 {
		return Config{}, fmt.Errorf("NEAREST_DEFAULT_K must be at least 1, got %d", cfg.DefaultK)
	}
	if cfg.MaxK < cfg.DefaultK {
		return Config{}, fmt.Errorf("NEAREST_MAX_K %d below NEAREST_DEFAULT_K %d", cfg.MaxK, cfg.DefaultK)
	}

	return cfg, nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func envDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
