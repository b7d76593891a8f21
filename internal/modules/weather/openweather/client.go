// Package openweather fetches current conditions from the OpenWeatherMap
// /data/2.5/weather endpoint.
package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vatsalyanallabothula/weather/internal/modules/weather/types"
)

const (
	defaultLocationName = "Unknown Area"
	defaultDescription  = "N/A"
	defaultIconCode     = "01d"

	// maxErrorBody caps how much of a failed response is kept for the error.
	maxErrorBody = 512
)

// UpstreamError is returned when the API answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("openweather: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("openweather: unexpected status %d: %s", e.StatusCode, e.Body)
}

// currentResponse mirrors the parts of the API response we render. Numeric
// fields stay raw so a null, missing or non-numeric value becomes absent
// instead of failing the whole response.
type currentResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp     json.RawMessage `json:"temp"`
		Humidity json.RawMessage `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed json.RawMessage `json:"speed"`
	} `json:"wind"`
}

type Options struct {
	APIKey      string
	BaseURL     string
	IconBaseURL string
	Timeout     time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
	Now        func() time.Time
}

type Client struct {
	apiKey      string
	baseURL     string
	iconBaseURL string
	http        *http.Client
	now         func() time.Time
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		apiKey:      opts.APIKey,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		iconBaseURL: strings.TrimRight(opts.IconBaseURL, "/"),
		http:        hc,
		now:         now,
	}
}

// CurrentWeather performs exactly one GET for the coordinates, in metric units.
func (c *Client) CurrentWeather(ctx context.Context, coords types.Coordinates) (types.WeatherReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.currentURL(coords), nil)
	if err != nil {
		return types.WeatherReading{}, fmt.Errorf("openweather: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// The request URL carries the API key; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return types.WeatherReading{}, fmt.Errorf("openweather: request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("openweather: close body", "error", err)
		}
	}()
	slog.Debug("openweather response",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return types.WeatherReading{}, &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var data currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return types.WeatherReading{}, fmt.Errorf("openweather: decode response: %w", err)
	}
	return c.toReading(data), nil
}

// IconURL is the 2x PNG for an icon code such as "04n".
func (c *Client) IconURL(code string) string {
	if code == "" {
		code = defaultIconCode
	}
	return fmt.Sprintf("%s/%s@2x.png", c.iconBaseURL, url.PathEscape(code))
}

func (c *Client) currentURL(coords types.Coordinates) string {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	return c.baseURL + "/weather?" + q.Encode()
}

func (c *Client) toReading(data currentResponse) types.WeatherReading {
	r := types.WeatherReading{
		LocationName: strings.TrimSpace(data.Name),
		Description:  defaultDescription,
		IconCode:     defaultIconCode,
		TemperatureC: numberOrNil(data.Main.Temp),
		HumidityPct:  numberOrNil(data.Main.Humidity),
		WindSpeedMps: numberOrNil(data.Wind.Speed),
		FetchedAt:    c.now().UTC(),
	}
	if r.LocationName == "" {
		r.LocationName = defaultLocationName
	}
	if len(data.Weather) > 0 {
		if d := strings.TrimSpace(data.Weather[0].Description); d != "" {
			// A Caser keeps state between calls, so each reading gets its own.
			r.Description = cases.Title(language.English).String(d)
		}
		if icon := strings.TrimSpace(data.Weather[0].Icon); icon != "" {
			r.IconCode = icon
		}
	}
	return r
}

// numberOrNil keeps raw only when it is a finite JSON number.
func numberOrNil(raw json.RawMessage) *float64 {
	var v float64
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
