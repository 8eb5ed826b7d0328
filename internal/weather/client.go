// Package weather is the anti-corruption layer between the pipeline and the
// OpenWeatherMap HTTP API. All outbound calls go through one resilience
// envelope: a client-side rate limiter (OWM free-tier quotas are easy to
// blow through during a backfill) and a circuit breaker so a provider outage
// fails fast instead of stalling every in-flight batch.
//
// Payload shapes are not modeled here: current and forecast responses are
// returned as raw JSON and carried opaquely through the cache to the
// renderer.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"weatherscape/internal/config"
	"weatherscape/internal/types"
)

// maxResponseBytes caps provider response bodies. A forecast payload is tens
// of KB; anything past this is a misbehaving upstream, not weather data.
const maxResponseBytes = 2 << 20

// Client calls the OpenWeatherMap geocoding and weather APIs.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	limiter    *rate.Limiter
	apiKey     types.SecretString
	baseURL    string
	geoBaseURL string
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a weather provider client from the weather configuration.
func NewClient(httpClient *http.Client, cfg config.WeatherConfig, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "openweathermap",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		httpClient: httpClient,
		breaker:    breaker,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		geoBaseURL: cfg.GeoBaseURL,
		logger:     logger,
		now:        time.Now,
	}
}

// HasCredentials reports whether the provider API key is configured. The
// Fetcher checks this before touching a batch: without credentials the whole
// batch is redelivered untouched.
func (c *Client) HasCredentials() bool {
	return c.apiKey.IsSet()
}

// GeocodeZip resolves a US ZIP code to coordinates via the OWM geocoding API.
func (c *Client) GeocodeZip(ctx context.Context, zip string) (types.GeocodeEntry, error) {
	u := fmt.Sprintf("%s/zip?zip=%s,US&appid=%s",
		c.geoBaseURL, url.QueryEscape(zip), url.QueryEscape(c.apiKey.Reveal()))

	body, err := c.doGet(ctx, u, types.ErrCodeUpstreamGeocode, "geocode")
	if err != nil {
		return types.GeocodeEntry{}, err
	}

	var resp struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return types.GeocodeEntry{}, types.NewAppError(types.ErrCodeUpstreamGeocode,
			fmt.Sprintf("geocode response for %s is not valid JSON", zip), err)
	}

	return types.GeocodeEntry{
		Lat:      resp.Lat,
		Lon:      resp.Lon,
		Zip:      zip,
		CachedAt: c.now().UTC(),
	}, nil
}

// CurrentWeather fetches the current conditions payload for the coordinates.
// Coordinates are sent with fixed 4-decimal precision.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/weather?%s", c.baseURL, c.coordQuery(lat, lon))
	return c.doGet(ctx, u, types.ErrCodeUpstreamWeather, "current weather")
}

// Forecast fetches the forecast payload for the coordinates.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/forecast?%s", c.baseURL, c.coordQuery(lat, lon))
	return c.doGet(ctx, u, types.ErrCodeUpstreamWeather, "forecast")
}

// coordQuery builds the shared query string for the weather endpoints.
// 4-decimal precision keeps request URLs cache-friendly (~11m resolution).
func (c *Client) coordQuery(lat, lon float64) string {
	return fmt.Sprintf("lat=%.4f&lon=%.4f&mode=json&APPID=%s",
		lat, lon, url.QueryEscape(c.apiKey.Reveal()))
}

// doGet executes one provider GET through the rate limiter and circuit
// breaker. Non-200 responses are hard failures mapped to code.
func (c *Client) doGet(ctx context.Context, rawURL string, code types.ErrorCode, what string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("rate limiter wait aborted for %s", what), err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			// Drain so the transport can reuse the connection.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
			return nil, fmt.Errorf("%s API returned status %d", what, resp.StatusCode)
		}

		return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("%s circuit breaker open", what), err)
		}
		return nil, types.NewAppError(code, fmt.Sprintf("%s request failed", what), err)
	}

	return body, nil
}
