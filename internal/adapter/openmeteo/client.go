// Package openmeteo fetches current weather and trailing rainfall from an
// Open-Meteo-compatible forecast API. Plain request/response with a timeout;
// no retries, no state.
package openmeteo

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

	"github.com/slopewatch/slope-monitor/internal/domain"
	"github.com/slopewatch/slope-monitor/internal/observability"
)

// Client queries the forecast endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a weather client against the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger,
		metrics:    metrics,
	}
}

// Fetch returns the current weather summary and the accumulated rainfall
// over the trailing 24 hours, in millimeters.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (domain.WeatherSummary, float64, error) {
	params := url.Values{
		"latitude":        {formatCoord(lat)},
		"longitude":       {formatCoord(lon)},
		"current":         {"temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation"},
		"hourly":          {"precipitation"},
		"past_hours":      {"24"},
		"forecast_hours":  {"1"},
		"wind_speed_unit": {"ms"},
	}

	start := time.Now()
	var resp forecastResponse
	err := c.doRequest(ctx, c.baseURL+"/v1/forecast?"+params.Encode(), &resp)
	c.metrics.TelemetryDuration.WithLabelValues("weather").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.TelemetryRequests.WithLabelValues("weather", "error").Inc()
		return domain.WeatherSummary{}, 0, err
	}
	c.metrics.TelemetryRequests.WithLabelValues("weather", "success").Inc()

	summary := domain.WeatherSummary{
		TemperatureC: resp.Current.Temperature,
		HumidityPct:  resp.Current.Humidity,
		WindSpeedMs:  resp.Current.WindSpeed,
		PrecipRateMm: resp.Current.Precipitation,
	}

	// The hourly series carries the 24 past hours first; anything beyond
	// that is forecast and excluded from the accumulation.
	var rain24h float64
	for i, v := range resp.Hourly.Precipitation {
		if i >= 24 {
			break
		}
		rain24h += v
	}

	return summary, rain24h, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("weather API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// Open-Meteo response types.

type forecastResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		Precipitation float64 `json:"precipitation"`
	} `json:"current"`
	Hourly struct {
		Precipitation []float64 `json:"precipitation"`
	} `json:"hourly"`
}
