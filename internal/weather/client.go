package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/familycabin/cabin/internal/calendar"
	"github.com/familycabin/cabin/internal/retry"
)

// DefaultBaseURL is the public Open-Meteo API.
const DefaultBaseURL = "https://api.open-meteo.com"

// Location identifies the forecast point.
type Location struct {
	Latitude  float64
	Longitude float64
	Timezone  string
}

// Day is the forecast for one calendar day.
type Day struct {
	Date                     calendar.Date `json:"date"`
	Code                     int           `json:"code"`
	Summary                  string        `json:"summary"`
	TemperatureMaxC          float64       `json:"temperature_max_c"`
	TemperatureMinC          float64       `json:"temperature_min_c"`
	PrecipitationProbability int           `json:"precipitation_probability"`
}

// Forecast is a daily forecast for the cabin.
type Forecast struct {
	Location Location `json:"-"`
	Days     []Day    `json:"days"`
}

// Client fetches forecasts from an Open-Meteo compatible endpoint.
type Client struct {
	http     *http.Client
	baseURL  string
	location Location
	days     int
	retry    *retry.Helper
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBaseURL points the client at another endpoint.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithRetry overrides the retry policy for forecast requests.
func WithRetry(cfg retry.Config) ClientOption {
	return func(c *Client) {
		c.retry = retry.New(cfg, isTransient)
	}
}

// NewClient creates a forecast client for location.
func NewClient(location Location, opts ...ClientOption) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 10 * time.Second},
		baseURL:  DefaultBaseURL,
		location: location,
		days:     7,
		retry:    retry.New(retry.DefaultConfig(), isTransient),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// statusError reports a non-200 upstream response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("forecast request returned status %d", e.code)
}

// isTransient retries network failures, rate limiting and server errors.
func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

type forecastResponse struct {
	Daily struct {
		Time                        []string   `json:"time"`
		WeatherCode                 []int      `json:"weather_code"`
		Temperature2mMax            []float64  `json:"temperature_2m_max"`
		Temperature2mMin            []float64  `json:"temperature_2m_min"`
		PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
	} `json:"daily"`
}

// Fetch requests the daily forecast. The GET is idempotent and retried on
// transient failures.
func (c *Client) Fetch(ctx context.Context) (Forecast, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return Forecast{}, err
	}

	var payload forecastResponse
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return &statusError{code: resp.StatusCode}
		}
		payload = forecastResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("decode forecast: %w", err)
		}
		return nil
	})
	if err != nil {
		return Forecast{}, err
	}
	return payload.toForecast(c.location)
}

func (c *Client) endpoint() (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse weather base url: %w", err)
	}
	base = base.JoinPath("v1", "forecast")

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.location.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(c.location.Longitude, 'f', 4, 64))
	q.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,precipitation_probability_max")
	tz := c.location.Timezone
	if tz == "" {
		tz = "auto"
	}
	q.Set("timezone", tz)
	q.Set("forecast_days", strconv.Itoa(c.days))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (r forecastResponse) toForecast(location Location) (Forecast, error) {
	d := r.Daily
	n := len(d.Time)
	if len(d.WeatherCode) != n || len(d.Temperature2mMax) != n || len(d.Temperature2mMin) != n {
		return Forecast{}, errors.New("forecast daily series have mismatched lengths")
	}

	days := make([]Day, 0, n)
	for i, raw := range d.Time {
		date, err := calendar.ParseDate(raw)
		if err != nil {
			return Forecast{}, fmt.Errorf("forecast day %d: %w", i, err)
		}
		day := Day{
			Date:            date,
			Code:            d.WeatherCode[i],
			Summary:         describe(d.WeatherCode[i]),
			TemperatureMaxC: d.Temperature2mMax[i],
			TemperatureMinC: d.Temperature2mMin[i],
		}
		if i < len(d.PrecipitationProbabilityMax) && d.PrecipitationProbabilityMax[i] != nil {
			day.PrecipitationProbability = int(*d.PrecipitationProbabilityMax[i])
		}
		days = append(days, day)
	}
	return Forecast{Location: location, Days: days}, nil
}

// describe maps WMO weather interpretation codes to a short summary.
func describe(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code <= 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code >= 61 && code <= 67:
		return "Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Rain showers"
	case code == 85 || code == 86:
		return "Snow showers"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
