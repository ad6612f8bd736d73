package datamall_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkscout/parkscout/internal/carpark"
	"github.com/parkscout/parkscout/internal/carpark/datamall"
)

func feedRecord(id, development, location, lotType string, available int) map[string]any {
	return map[string]any{
		"CarParkID":     id,
		"Development":   development,
		"Location":      location,
		"AvailableLots": available,
		"LotType":       lotType,
		"Agency":        "LTA",
	}
}

func newFeedServer(t *testing.T, pages map[int][]map[string]any) (*httptest.Server, *[]string) {
	t.Helper()

	var keys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("AccountKey"))

		skip := 0
		if v := r.URL.Query().Get("$skip"); v != "" {
			skip, _ = strconv.Atoi(v)
		}

		records := pages[skip]
		_ = json.NewEncoder(w).Encode(map[string]any{"value": records})
	}))
	t.Cleanup(server.Close)

	return server, &keys
}

func newTestClient(server *httptest.Server) *datamall.Client {
	return datamall.NewClient(datamall.ClientConfig{
		AccountKey: "test-key",
		BaseURL:    server.URL,
		Logger:     zerolog.Nop(),
	})
}

func TestClient_SnapshotSinglePage(t *testing.T) {
	server, keys := newFeedServer(t, map[int][]map[string]any{
		0: {
			feedRecord("A1", "Suntec City", "1.29375 103.85718", "C", 522),
			feedRecord("A1", "Suntec City", "1.29375 103.85718", "Y", 30),
			feedRecord("B2", "Marina Square", "1.29115 103.85728", "C", 8),
		},
	})
	client := newTestClient(server)

	dataset, err := client.Snapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, dataset.Records, 2)
	assert.Empty(t, dataset.Warnings)
	assert.Equal(t, []string{"test-key"}, *keys)

	suntec := dataset.Records[0]
	assert.Equal(t, "A1", suntec.ID)
	assert.Equal(t, "Suntec City", suntec.Name)
	assert.True(t, suntec.HasCoordinate)
	assert.InDelta(t, 1.29375, suntec.Coordinate.Lat, 1e-9)
	assert.Equal(t, 522, suntec.Lots[carpark.LotTypeCar].Available)
	assert.Equal(t, 30, suntec.Lots[carpark.LotTypeMotorcycle].Available)
}

func TestClient_SnapshotPaginates(t *testing.T) {
	fullPage := make([]map[string]any, 0, 500)
	for i := 0; i < 500; i++ {
		fullPage = append(fullPage, feedRecord(
			fmt.Sprintf("CP%03d", i), "Dev", "1.30000 103.80000", "C", i))
	}

	server, _ := newFeedServer(t, map[int][]map[string]any{
		0:   fullPage,
		500: {feedRecord("LAST", "Tail", "1.31000 103.81000", "C", 1)},
	})
	client := newTestClient(server)

	dataset, err := client.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Len(t, dataset.Records, 501)
	_, ok := dataset.Lookup("LAST")
	assert.True(t, ok)
}

func TestClient_SnapshotStopsOnEmptyPage(t *testing.T) {
	server, _ := newFeedServer(t, map[int][]map[string]any{})
	client := newTestClient(server)

	dataset, err := client.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dataset.Records)
}

func TestClient_MalformedLocationBecomesIneligible(t *testing.T) {
	server, _ := newFeedServer(t, map[int][]map[string]any{
		0: {
			feedRecord("GOOD", "OK", "1.29375 103.85718", "C", 10),
			feedRecord("BAD", "Broken", "nowhere", "C", 5),
		},
	})
	client := newTestClient(server)

	dataset, err := client.Snapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, dataset.Records, 2)
	require.Len(t, dataset.Warnings, 1)

	bad, ok := dataset.Lookup("BAD")
	require.True(t, ok)
	assert.False(t, bad.HasCoordinate)
	assert.Equal(t, 5, bad.Lots[carpark.LotTypeCar].Available)
	assert.Equal(t, 1, dataset.EligibleCount())
}

func TestClient_UpstreamErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server)

	_, err := client.Snapshot(context.Background())
	assert.ErrorIs(t, err, carpark.ErrSourceUnavailable)
}
