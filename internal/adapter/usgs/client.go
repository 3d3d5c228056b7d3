// Package usgs summarizes recent regional seismicity from a USGS
// FDSN-compatible event API.
package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/slopewatch/slope-monitor/internal/domain"
	"github.com/slopewatch/slope-monitor/internal/observability"
)

// searchRadiusKm bounds the event query around the monitored site.
const searchRadiusKm = 100

// Client queries the event catalog.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a seismic client against the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
		metrics:    metrics,
	}
}

// Summary returns the strongest magnitude and event count within the search
// radius over the trailing 24 hours. Events without a magnitude count toward
// the total but not the maximum.
func (c *Client) Summary(ctx context.Context, lat, lon float64) (domain.SeismicSummary, error) {
	since := c.clock.Now().UTC().Add(-24 * time.Hour)
	params := url.Values{
		"format":      {"geojson"},
		"latitude":    {strconv.FormatFloat(lat, 'f', 4, 64)},
		"longitude":   {strconv.FormatFloat(lon, 'f', 4, 64)},
		"maxradiuskm": {strconv.Itoa(searchRadiusKm)},
		"starttime":   {since.Format(time.RFC3339)},
	}

	start := time.Now()
	var resp queryResponse
	err := c.doRequest(ctx, c.baseURL+"/fdsnws/event/1/query?"+params.Encode(), &resp)
	c.metrics.TelemetryDuration.WithLabelValues("seismic").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.TelemetryRequests.WithLabelValues("seismic", "error").Inc()
		return domain.SeismicSummary{}, err
	}
	c.metrics.TelemetryRequests.WithLabelValues("seismic", "success").Inc()

	summary := domain.SeismicSummary{CountLast24h: len(resp.Features)}
	for _, f := range resp.Features {
		if f.Properties.Mag != nil && *f.Properties.Mag > summary.StrongestMagnitude {
			summary.StrongestMagnitude = *f.Properties.Mag
		}
	}
	return summary, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("seismic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("seismic API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// USGS GeoJSON response types. Magnitude can be null in the catalog.

type queryResponse struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties struct {
		Mag *float64 `json:"mag"`
	} `json:"properties"`
}
