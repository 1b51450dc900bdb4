// Package weather fetches rainfall observations and short-range forecasts
// from the OpenWeather API, with a redis-backed grid-cell cache in front of
// it to keep per-ward lookups inside the API rate budget.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Snapshot is one weather observation, either city-wide or for a grid cell.
type Snapshot struct {
	Source       string    `json:"source"`
	RainfallMM   float64   `json:"rainfall_mm"`
	Forecast3hMM float64   `json:"forecast_3h_mm"`
	Humidity     float64   `json:"humidity"`
	TemperatureC float64   `json:"temperature_c"`
	Clouds       float64   `json:"clouds"`
	Timestamp    time.Time `json:"timestamp"`
}

// Source provides weather snapshots. The cache decorator and test fakes
// implement the same interface as the live client.
type Source interface {
	// CityOverview returns current conditions plus the 3h forecast for Delhi.
	CityOverview(ctx context.Context) (Snapshot, error)

	// ForCell returns current conditions at a grid-cell coordinate.
	ForCell(ctx context.Context, lat, lon float64) (Snapshot, error)
}

// ErrNotConfigured is returned when no API key is set; callers fall back to
// the next source in the priority chain.
var ErrNotConfigured = errors.New("openweather: api key not configured")

// Client implements Source against the OpenWeather API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an OpenWeather client.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// CityOverview fetches current Delhi conditions and the first 3h forecast slot.
func (c *Client) CityOverview(ctx context.Context) (Snapshot, error) {
	if c.apiKey == "" {
		return Snapshot{}, ErrNotConfigured
	}

	params := url.Values{
		"q":     {"Delhi,IN"},
		"appid": {c.apiKey},
		"units": {"metric"},
	}

	var current currentResponse
	if err := c.get(ctx, "/weather", params, &current); err != nil {
		return Snapshot{}, fmt.Errorf("current weather: %w", err)
	}

	var forecast forecastResponse
	if err := c.get(ctx, "/forecast", params, &forecast); err != nil {
		return Snapshot{}, fmt.Errorf("forecast: %w", err)
	}

	snap := snapshotFromCurrent(current)
	if len(forecast.List) > 0 {
		snap.Forecast3hMM = forecast.List[0].Rain.ThreeHour
	}
	return snap, nil
}

// ForCell fetches current conditions at a coordinate. The 3h rain figure
// doubles as the forecast when the forecast endpoint has no cell-level data.
func (c *Client) ForCell(ctx context.Context, lat, lon float64) (Snapshot, error) {
	if c.apiKey == "" {
		return Snapshot{}, ErrNotConfigured
	}

	params := url.Values{
		"lat":   {fmt.Sprintf("%.4f", lat)},
		"lon":   {fmt.Sprintf("%.4f", lon)},
		"appid": {c.apiKey},
		"units": {"metric"},
	}

	var current currentResponse
	if err := c.get(ctx, "/weather", params, &current); err != nil {
		return Snapshot{}, fmt.Errorf("cell weather: %w", err)
	}

	snap := snapshotFromCurrent(current)
	if snap.Forecast3hMM == 0 {
		snap.Forecast3hMM = snap.RainfallMM
	}
	return snap, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func snapshotFromCurrent(r currentResponse) Snapshot {
	return Snapshot{
		Source:       "openweather",
		RainfallMM:   r.Rain.OneHour,
		Forecast3hMM: r.Rain.ThreeHour,
		Humidity:     r.Main.Humidity,
		TemperatureC: r.Main.Temp,
		Clouds:       r.Clouds.All,
		Timestamp:    time.Now().UTC(),
	}
}

// OpenWeather API response types.

type rain struct {
	OneHour   float64 `json:"1h"`
	ThreeHour float64 `json:"3h"`
}

type currentResponse struct {
	Rain rain `json:"rain"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
}

type forecastResponse struct {
	List []struct {
		Rain rain `json:"rain"`
	} `json:"list"`
}
