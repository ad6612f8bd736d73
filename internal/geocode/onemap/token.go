package onemap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/parkscout/parkscout/internal/upstream"
)

// DefaultTokenURL is the OneMap token endpoint.
const DefaultTokenURL = "https://www.onemap.gov.sg/api/auth/post/getToken" //nolint:gosec // endpoint URL, not a credential

// defaultRefreshSkew refreshes the token this long before its expiry.
const defaultRefreshSkew = 60 * time.Second

// TokenSourceConfig holds configuration for the OneMap token source.
type TokenSourceConfig struct {
	// Email and Password are the OneMap account credentials (required).
	Email    string
	Password string

	// TokenURL overrides the token endpoint (optional).
	TokenURL string

	// HTTPClient is the upstream client to use (optional).
	HTTPClient *upstream.Client

	// RefreshSkew is how long before expiry a token is considered expired.
	RefreshSkew time.Duration

	// Logger for token operations.
	Logger zerolog.Logger
}

// TokenSource manages the OneMap access token lifecycle: acquire on demand,
// cache in-process, refresh on expiry. It is an explicitly constructed object
// with injected configuration; there is no process-wide token state.
type TokenSource struct {
	config     TokenSourceConfig
	httpClient *upstream.Client
	logger     zerolog.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenSource creates a token source for the given credentials.
func NewTokenSource(cfg TokenSourceConfig) *TokenSource {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.RefreshSkew == 0 {
		cfg.RefreshSkew = defaultRefreshSkew
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = upstream.NewClient(upstream.ClientConfig{Name: "onemap-auth"})
	}

	return &TokenSource{
		config:     cfg,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Token returns a valid access token, fetching a new one when the cached
// token is missing or within the refresh skew of its expiry. Concurrent
// callers share a single refresh.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Add(s.config.RefreshSkew).Before(s.expiry) {
		return s.token, nil
	}

	token, expiry, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiry = expiry

	s.logger.Debug().
		Time("expiry", expiry).
		Msg("onemap token refreshed")

	return token, nil
}

// Invalidate discards the cached token, forcing a refresh on the next call.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiry = time.Time{}
}

type tokenResponse struct {
	AccessToken     string      `json:"access_token"`
	ExpiryTimestamp json.Number `json:"expiry_timestamp"`
}

func (s *TokenSource) fetch(ctx context.Context) (string, time.Time, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    s.config.Email,
		"password": s.config.Password,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encoding token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", time.Time{}, fmt.Errorf("decoding token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("token endpoint returned no access token")
	}

	expiry := parseExpiry(tr)
	if expiry.IsZero() {
		return "", time.Time{}, fmt.Errorf("token response carried no usable expiry")
	}

	return tr.AccessToken, expiry, nil
}

// parseExpiry prefers the response's expiry_timestamp field and falls back to
// the exp claim of the access token, which OneMap issues as a JWT. The claim
// is read without signature verification; the token is only used as an opaque
// bearer credential.
func parseExpiry(tr tokenResponse) time.Time {
	if tr.ExpiryTimestamp != "" {
		if unix, err := strconv.ParseInt(tr.ExpiryTimestamp.String(), 10, 64); err == nil && unix > 0 {
			return time.Unix(unix, 0)
		}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}

	return time.Time{}
}
