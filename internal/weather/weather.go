// Package weather seeds the wind configuration from live conditions.
// Maps OpenWeatherMap wind reports onto a base heading and magnitude.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/wind"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// Client fetches weather data from OpenWeatherMap.
type Client struct {
	apiKey   string
	location string
	baseURL  string
	client   *http.Client
	now      func() time.Time

	mu          sync.Mutex
	cached      *Conditions
	cachedAt    time.Time
	cacheTTL    time.Duration
	lastFailAt  time.Time
	failBackoff time.Duration
}

// NewClient creates a weather API client. Returns nil if apiKey is empty.
func NewClient(apiKey, location string) *Client {
	if apiKey == "" {
		return nil
	}
	if location == "" {
		location = "San Diego,US"
	}
	return &Client{
		apiKey:   apiKey,
		location: location,
		baseURL:  defaultBaseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		cacheTTL: 5 * time.Minute,
	}
}

// Conditions holds parsed weather data from the API.
type Conditions struct {
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"` // m/s
	WindDeg     float64 `json:"wind_deg"`   // direction the wind blows from, clockwise from north
	WindGust    float64 `json:"wind_gust"`  // m/s, 0 when not reported
	IsStorm     bool    `json:"is_storm"`
}

// Fetch retrieves current weather conditions, using cache if fresh. A nil
// client returns nil conditions and no error.
func (c *Client) Fetch(ctx context.Context) (*Conditions, error) {
	if c == nil {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.cached != nil && now.Sub(c.cachedAt) < c.cacheTTL {
		return c.cached, nil
	}

	// Backoff on repeated failures (up to 10 minutes).
	if c.failBackoff > 0 && now.Sub(c.lastFailAt) < c.failBackoff {
		if c.cached != nil {
			return c.cached, nil
		}
		return nil, fmt.Errorf("weather API backoff (%s remaining)", c.failBackoff-now.Sub(c.lastFailAt))
	}

	conditions, err := c.fetchFromAPI(ctx)
	if err != nil {
		c.lastFailAt = now
		if c.failBackoff == 0 {
			c.failBackoff = 1 * time.Minute
		} else if c.failBackoff < 10*time.Minute {
			c.failBackoff *= 2
		}
		if c.cached != nil {
			return c.cached, nil
		}
		return nil, err
	}

	c.cached = conditions
	c.cachedAt = now
	c.failBackoff = 0 // Reset backoff on success.
	return conditions, nil
}

func (c *Client) fetchFromAPI(ctx context.Context) (*Conditions, error) {
	q := url.Values{}
	q.Set("q", c.location)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather API call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API error %d: %s", resp.StatusCode, string(body))
	}

	// Parse OpenWeatherMap response.
	var owm struct {
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
			Deg   float64 `json:"deg"`
			Gust  float64 `json:"gust"`
		} `json:"wind"`
	}

	if err := json.Unmarshal(body, &owm); err != nil {
		return nil, fmt.Errorf("parse weather: %w", err)
	}

	conditions := &Conditions{
		WindSpeed: owm.Wind.Speed,
		WindDeg:   owm.Wind.Deg,
		WindGust:  owm.Wind.Gust,
		IsStorm:   owm.Wind.Speed > 15,
	}
	if len(owm.Weather) > 0 {
		conditions.Description = owm.Weather[0].Description
		if strings.EqualFold(owm.Weather[0].Main, "thunderstorm") {
			conditions.IsStorm = true
		}
	}

	slog.Debug("weather fetched", "wind_speed", conditions.WindSpeed, "wind_deg", conditions.WindDeg, "desc", conditions.Description)
	return conditions, nil
}

// Heading converts a meteorological bearing (degrees the wind blows from,
// clockwise from north) to the unit vector it blows toward. North is +Z and
// east is +X.
func Heading(fromDeg float64) geom.Vec3 {
	toward := (fromDeg + 180) * math.Pi / 180
	return geom.V(math.Sin(toward), 0, math.Cos(toward)).Normalize()
}

// MapToWind overlays live conditions on base. forcePerMS converts wind speed
// in m/s to simulation force units. Reported gusts switch on the gust layer
// with a matching peak; storms switch on turbulence. Nil conditions leave
// base unchanged.
func MapToWind(c *Conditions, base wind.Config, forcePerMS float64) wind.Config {
	if c == nil {
		return base
	}
	if !(forcePerMS > 0) {
		forcePerMS = 1
	}

	out := base
	out.BaseHeading = Heading(c.WindDeg)
	out.BaseMagnitude = math.Max(0, c.WindSpeed) * forcePerMS
	if out.MaxMagnitude < out.BaseMagnitude {
		out.MaxMagnitude = out.BaseMagnitude
	}

	if c.WindGust > c.WindSpeed && c.WindSpeed > 0 {
		out.Gust.Enabled = true
		out.Gust.Intensity = c.WindGust/c.WindSpeed - 1
		if peak := c.WindGust * forcePerMS; out.MaxMagnitude < peak {
			out.MaxMagnitude = peak
		}
	}
	if c.IsStorm {
		out.Turbulence.Enabled = true
		out.Turbulence.Intensity = math.Max(out.Turbulence.Intensity, 0.8)
	}
	return out
}
