package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familycabin/cabin/internal/retry"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubFetcher struct {
	calls    atomic.Int32
	forecast Forecast
	err      error
}

func (f *stubFetcher) Fetch(context.Context) (Forecast, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Forecast{}, f.err
	}
	return f.forecast, nil
}

func forecastWith(summary string) Forecast {
	return Forecast{Days: []Day{{Summary: summary}}}
}

func TestCache_Freshness(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)}
	cache := NewCache[string](time.Minute, clock.Now)

	_, ok := cache.Get()
	require.False(t, ok)

	cache.Set("sunny")
	entry, ok := cache.Get()
	require.True(t, ok)
	assert.True(t, entry.Fresh)
	assert.Equal(t, "sunny", entry.Value)
	assert.Equal(t, clock.Now(), entry.FetchedAt)

	clock.Advance(59 * time.Second)
	entry, _ = cache.Get()
	assert.True(t, entry.Fresh)

	clock.Advance(time.Second)
	entry, ok = cache.Get()
	require.True(t, ok)
	assert.False(t, entry.Fresh, "entry must expire exactly at the TTL")
	assert.Equal(t, "sunny", entry.Value)

	cache.Clear()
	_, ok = cache.Get()
	assert.False(t, ok)
}

func TestService_Forecast(t *testing.T) {
	t.Parallel()

	t.Run("serves fresh forecasts from cache", func(t *testing.T) {
		t.Parallel()
		clock := &manualClock{now: time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)}
		fetcher := &stubFetcher{forecast: forecastWith("Clear sky")}
		svc := NewService(fetcher, 10*time.Minute, clock.Now, nil)

		first, err := svc.Forecast(context.Background())
		require.NoError(t, err)
		clock.Advance(5 * time.Minute)
		second, err := svc.Forecast(context.Background())
		require.NoError(t, err)

		assert.Equal(t, int32(1), fetcher.calls.Load())
		assert.Equal(t, first, second)
		assert.False(t, second.Stale)
	})

	t.Run("refreshes once the TTL passes", func(t *testing.T) {
		t.Parallel()
		clock := &manualClock{now: time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)}
		fetcher := &stubFetcher{forecast: forecastWith("Clear sky")}
		svc := NewService(fetcher, 10*time.Minute, clock.Now, nil)

		_, err := svc.Forecast(context.Background())
		require.NoError(t, err)
		clock.Advance(10 * time.Minute)
		fetcher.forecast = forecastWith("Rain")

		report, err := svc.Forecast(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(2), fetcher.calls.Load())
		assert.Equal(t, "Rain", report.Forecast.Days[0].Summary)
		assert.Equal(t, clock.Now(), report.FetchedAt)
	})

	t.Run("falls back to the stale forecast when refresh fails", func(t *testing.T) {
		t.Parallel()
		clock := &manualClock{now: time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)}
		fetcher := &stubFetcher{forecast: forecastWith("Clear sky")}
		svc := NewService(fetcher, 10*time.Minute, clock.Now, nil)

		_, err := svc.Forecast(context.Background())
		require.NoError(t, err)
		fetchedAt := clock.Now()
		clock.Advance(time.Hour)
		fetcher.err = errors.New("upstream down")

		report, err := svc.Forecast(context.Background())
		require.NoError(t, err)
		assert.True(t, report.Stale)
		assert.Equal(t, fetchedAt, report.FetchedAt)
		assert.Equal(t, "Clear sky", report.Forecast.Days[0].Summary)
	})

	t.Run("reports unavailability with nothing cached", func(t *testing.T) {
		t.Parallel()
		fetcher := &stubFetcher{err: errors.New("upstream down")}
		svc := NewService(fetcher, time.Minute, nil, nil)

		_, err := svc.Forecast(context.Background())
		require.ErrorIs(t, err, ErrUnavailable)
	})
}

const samplePayload = `{
  "latitude": 46.5,
  "longitude": -121.7,
  "daily": {
    "time": ["2024-06-01", "2024-06-02"],
    "weather_code": [0, 63],
    "temperature_2m_max": [24.5, 18.1],
    "temperature_2m_min": [9.2, 10.4],
    "precipitation_probability_max": [5, null]
  }
}`

func noDelay() retry.Config {
	return retry.Config{MaxRetries: 2, BackoffFactor: 1}
}

func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("parses the daily series", func(t *testing.T) {
		t.Parallel()
		var query string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/forecast", r.URL.Path)
			query = r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(samplePayload))
		}))
		t.Cleanup(srv.Close)

		client := NewClient(Location{Latitude: 46.5, Longitude: -121.7, Timezone: "America/Los_Angeles"}, WithBaseURL(srv.URL), WithRetry(noDelay()))
		forecast, err := client.Fetch(context.Background())
		require.NoError(t, err)
		require.Len(t, forecast.Days, 2)

		assert.Equal(t, "2024-06-01", forecast.Days[0].Date.String())
		assert.Equal(t, "Clear sky", forecast.Days[0].Summary)
		assert.Equal(t, 5, forecast.Days[0].PrecipitationProbability)
		assert.Equal(t, "Rain", forecast.Days[1].Summary)
		assert.Equal(t, 0, forecast.Days[1].PrecipitationProbability)
		assert.InDelta(t, 18.1, forecast.Days[1].TemperatureMaxC, 0.001)
		assert.Contains(t, query, "latitude=46.5000")
		assert.Contains(t, query, "timezone=America%2FLos_Angeles")
	})

	t.Run("retries server errors", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(samplePayload))
		}))
		t.Cleanup(srv.Close)

		client := NewClient(Location{}, WithBaseURL(srv.URL), WithRetry(noDelay()))
		_, err := client.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		t.Cleanup(srv.Close)

		client := NewClient(Location{}, WithBaseURL(srv.URL), WithRetry(noDelay()))
		_, err := client.Fetch(context.Background())
		require.Error(t, err)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("rejects mismatched series", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"daily":{"time":["2024-06-01"],"weather_code":[],"temperature_2m_max":[1],"temperature_2m_min":[1]}}`))
		}))
		t.Cleanup(srv.Close)

		client := NewClient(Location{}, WithBaseURL(srv.URL), WithRetry(noDelay()))
		_, err := client.Fetch(context.Background())
		require.Error(t, err)
	})
}
