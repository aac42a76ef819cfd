package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched forecast is served without refreshing.
const DefaultTTL = 30 * time.Minute

// ErrUnavailable is returned when no forecast could be fetched and none is
// cached.
var ErrUnavailable = errors.New("weather: forecast unavailable")

// Fetcher retrieves a fresh forecast.
type Fetcher interface {
	Fetch(ctx context.Context) (Forecast, error)
}

// Report is a forecast with its age. Stale is set when a refresh failed and
// an older forecast is served instead.
type Report struct {
	Forecast  Forecast  `json:"forecast"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
}

// Service serves forecasts from a cache and refreshes it on demand.
type Service struct {
	fetcher Fetcher
	cache   *Cache[Forecast]
	group   singleflight.Group
	logger  *slog.Logger
}

// NewService creates a Service. now drives freshness decisions.
func NewService(fetcher Fetcher, ttl time.Duration, now func() time.Time, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetcher: fetcher,
		cache:   NewCache[Forecast](ttl, now),
		logger:  logger.With("service", "WeatherService"),
	}
}

// Forecast returns the cached forecast while it is fresh. Otherwise it
// refreshes; concurrent callers share one upstream request. When the refresh
// fails the last good forecast is returned with Stale set.
func (s *Service) Forecast(ctx context.Context) (Report, error) {
	if s == nil {
		return Report{}, fmt.Errorf("WeatherService is nil")
	}

	entry, cached := s.cache.Get()
	if cached && entry.Fresh {
		return Report{Forecast: entry.Value, FetchedAt: entry.FetchedAt}, nil
	}

	_, err, _ := s.group.Do("forecast", func() (any, error) {
		forecast, err := s.fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(forecast)
		return nil, nil
	})
	if err != nil {
		logger := s.logger.With("operation", "Forecast", "error", err)
		if cached {
			logger.WarnContext(ctx, "forecast refresh failed, serving stale forecast", "fetched_at", entry.FetchedAt)
			return Report{Forecast: entry.Value, FetchedAt: entry.FetchedAt, Stale: true}, nil
		}
		logger.ErrorContext(ctx, "forecast refresh failed")
		return Report{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	entry, _ = s.cache.Get()
	return Report{Forecast: entry.Value, FetchedAt: entry.FetchedAt}, nil
}

// Invalidate forces the next call to refresh.
func (s *Service) Invalidate() {
	if s != nil {
		s.cache.Clear()
	}
}
