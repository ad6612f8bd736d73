// Package onemap implements geocoding against the Singapore OneMap API.
package onemap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/parkscout/parkscout/internal/geo"
	"github.com/parkscout/parkscout/internal/geocode"
	"github.com/parkscout/parkscout/internal/upstream"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "onemap"

	// DefaultBaseURL is the OneMap API base URL.
	DefaultBaseURL = "https://www.onemap.gov.sg"

	// searchPath is the elastic address search endpoint.
	searchPath = "/api/common/elastic/search"
)

// ClientConfig holds configuration for the OneMap client.
type ClientConfig struct {
	// Tokens supplies access tokens for the API (required).
	Tokens *TokenSource

	// BaseURL overrides the API base URL (optional).
	BaseURL string

	// HTTPClient is the upstream client to use (optional).
	HTTPClient *upstream.Client

	// RequestsPerMinute caps outgoing search requests (default: 240, the
	// documented OneMap quota).
	RequestsPerMinute int

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a OneMap geocoding client. It implements geocode.Geocoder.
type Client struct {
	tokens     *TokenSource
	baseURL    string
	httpClient *upstream.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewClient creates a new OneMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = upstream.NewClient(upstream.ClientConfig{Name: ProviderName})
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 240
	}

	return &Client{
		tokens:     cfg.Tokens,
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

type searchResponse struct {
	Found   int `json:"found"`
	Results []struct {
		SearchVal string `json:"SEARCHVAL"`
		Address   string `json:"ADDRESS"`
		Latitude  string `json:"LATITUDE"`
		Longitude string `json:"LONGITUDE"`
	} `json:"results"`
}

// Geocode resolves an address to its single best-match coordinate. The first
// search result wins. A result-less response yields geocode.ErrNoMatch;
// transport and server failures yield geocode.ErrUnavailable.
func (c *Client) Geocode(ctx context.Context, address string) (geocode.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return geocode.Result{}, fmt.Errorf("%w: %v", geocode.ErrUnavailable, err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return geocode.Result{}, fmt.Errorf("%w: acquiring token: %v", geocode.ErrUnavailable, err)
	}

	params := url.Values{
		"searchVal":      {address},
		"returnGeom":     {"Y"},
		"getAddrDetails": {"Y"},
	}
	searchURL := c.baseURL + searchPath + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, http.NoBody)
	if err != nil {
		return geocode.Result{}, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geocode.Result{}, fmt.Errorf("%w: %v", geocode.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked ahead of its expiry.
		c.tokens.Invalidate()
		return geocode.Result{}, fmt.Errorf("%w: unauthorized", geocode.ErrUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return geocode.Result{}, fmt.Errorf("%w: status %d", geocode.ErrUnavailable, resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return geocode.Result{}, fmt.Errorf("%w: decoding response: %v", geocode.ErrUnavailable, err)
	}

	if len(sr.Results) == 0 {
		c.logger.Debug().
			Str("address", address).
			Msg("onemap search returned no results")
		return geocode.Result{}, fmt.Errorf("%w: %q", geocode.ErrNoMatch, address)
	}

	best := sr.Results[0]
	lat, err := strconv.ParseFloat(best.Latitude, 64)
	if err != nil {
		return geocode.Result{}, fmt.Errorf("%w: invalid latitude %q", geocode.ErrUnavailable, best.Latitude)
	}
	lon, err := strconv.ParseFloat(best.Longitude, 64)
	if err != nil {
		return geocode.Result{}, fmt.Errorf("%w: invalid longitude %q", geocode.ErrUnavailable, best.Longitude)
	}

	coord := geo.Coordinate{Lat: lat, Lon: lon}
	if err := coord.Validate(); err != nil {
		return geocode.Result{}, fmt.Errorf("%w: %v", geocode.ErrUnavailable, err)
	}

	c.logger.Debug().
		Str("address", address).
		Float64("lat", lat).
		Float64("lon", lon).
		Dur("duration", time.Since(start)).
		Msg("address geocoded")

	return geocode.Result{Coordinate: coord, Address: best.Address}, nil
}
