// Package datamall implements the LTA DataMall carpark availability feed.
package datamall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkscout/parkscout/internal/carpark"
	"github.com/parkscout/parkscout/internal/geo"
	"github.com/parkscout/parkscout/internal/upstream"
)

const (
	// ProviderName identifies this availability provider.
	ProviderName = "lta-datamall"

	// DefaultBaseURL is the CarParkAvailabilityv2 endpoint.
	DefaultBaseURL = "https://datamall2.mytransport.sg/ltaodataservice/CarParkAvailabilityv2"

	// pageSize is the fixed page size of the feed; a short page ends pagination.
	pageSize = 500
)

// ClientConfig holds configuration for the DataMall client.
type ClientConfig struct {
	// AccountKey is the DataMall API account key (required).
	AccountKey string

	// BaseURL overrides the availability endpoint (optional).
	BaseURL string

	// HTTPClient is the upstream client to use (optional).
	HTTPClient *upstream.Client

	// MaxPages bounds pagination as a runaway guard (default: 40).
	MaxPages int

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches carpark availability from LTA DataMall. It implements
// carpark.Source.
type Client struct {
	accountKey string
	baseURL    string
	httpClient *upstream.Client
	maxPages   int
	logger     zerolog.Logger
}

// NewClient creates a new DataMall client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = upstream.NewClient(upstream.ClientConfig{
			Name:    ProviderName,
			Timeout: 30 * time.Second,
		})
	}

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 40
	}

	return &Client{
		accountKey: cfg.AccountKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		maxPages:   maxPages,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

type availabilityRecord struct {
	CarParkID     string `json:"CarParkID"`
	Area          string `json:"Area"`
	Development   string `json:"Development"`
	Location      string `json:"Location"`
	AvailableLots int    `json:"AvailableLots"`
	LotType       string `json:"LotType"`
	Agency        string `json:"Agency"`
}

type availabilityResponse struct {
	Value []availabilityRecord `json:"value"`
}

// Snapshot fetches all availability records, paging with $skip until the feed
// returns a short or empty page, and assembles them into a dataset. Records
// whose Location cannot be parsed stay in the dataset tagged ineligible.
// Implements carpark.Source.
func (c *Client) Snapshot(ctx context.Context) (*carpark.Dataset, error) {
	dataset := &carpark.Dataset{
		FetchedAt: time.Now(),
		Source:    ProviderName,
	}
	byID := make(map[string]int)

	fetched := 0
	for page := 0; page < c.maxPages; page++ {
		records, err := c.fetchPage(ctx, page*pageSize)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			break
		}

		for _, rec := range records {
			fetched++
			mergeRecord(dataset, byID, rec, fetched)
		}

		if len(records) < pageSize {
			break
		}
	}

	c.logger.Info().
		Int("records", fetched).
		Int("carparks", len(dataset.Records)).
		Int("warnings", len(dataset.Warnings)).
		Msg("carpark availability fetched")

	return dataset, nil
}

func (c *Client) fetchPage(ctx context.Context, skip int) ([]availabilityRecord, error) {
	pageURL := c.baseURL
	if skip > 0 {
		pageURL = fmt.Sprintf("%s?$skip=%d", c.baseURL, skip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("AccountKey", c.accountKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", carpark.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", carpark.ErrSourceUnavailable, resp.StatusCode)
	}

	var ar availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", carpark.ErrSourceUnavailable, err)
	}

	return ar.Value, nil
}

// mergeRecord folds one feed record into the dataset, one lot type at a time,
// with the same last-occurrence-wins policy the CSV loader applies.
func mergeRecord(dataset *carpark.Dataset, byID map[string]int, rec availabilityRecord, row int) {
	if rec.CarParkID == "" {
		dataset.Warnings = append(dataset.Warnings, carpark.RowWarning{
			Row:    row,
			Reason: "missing carpark identifier",
		})
		return
	}

	idx, seen := byID[rec.CarParkID]
	if !seen {
		idx = len(dataset.Records)
		byID[rec.CarParkID] = idx
		dataset.Records = append(dataset.Records, carpark.Record{
			ID:   rec.CarParkID,
			Lots: make(map[carpark.LotType]carpark.Availability),
		})
	}
	record := &dataset.Records[idx]

	if rec.Development != "" {
		record.Name = rec.Development
	}
	if rec.Agency != "" {
		record.Agency = rec.Agency
	}

	coord, err := parseLocation(rec.Location)
	if err != nil {
		record.HasCoordinate = false
		record.IneligibleReason = err.Error()
		dataset.Warnings = append(dataset.Warnings, carpark.RowWarning{
			Row:    row,
			ID:     rec.CarParkID,
			Reason: err.Error(),
		})
	} else {
		record.Coordinate = coord
		record.HasCoordinate = true
		record.IneligibleReason = ""
	}

	lotType := carpark.LotType(rec.LotType)
	if rec.LotType == "" {
		lotType = carpark.LotTypeUnknown
	}
	available := rec.AvailableLots
	if available < 0 {
		dataset.Warnings = append(dataset.Warnings, carpark.RowWarning{
			Row:    row,
			ID:     rec.CarParkID,
			Reason: fmt.Sprintf("negative available lots %d", available),
		})
		return
	}

	// The feed publishes availability only; capacity is unknown.
	record.Lots[lotType] = carpark.Availability{Total: available, Available: available}
}

// parseLocation splits the feed's "lat lon" Location field.
func parseLocation(location string) (geo.Coordinate, error) {
	parts := strings.Fields(location)
	if len(parts) != 2 {
		return geo.Coordinate{}, fmt.Errorf("malformed location %q", location)
	}

	lat, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("invalid longitude %q", parts[1])
	}

	coord := geo.Coordinate{Lat: lat, Lon: lon}
	if err := coord.Validate(); err != nil {
		return geo.Coordinate{}, err
	}
	return coord, nil
}
