package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// DefaultSwapResponseRate limits the public swap response endpoint per client IP.
const DefaultSwapResponseRate = "20-M"

// NewMemoryLimiterStore keeps rate counters in process.
func NewMemoryLimiterStore(prefix string) limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	})
}

// NewRedisLimiterStore shares rate counters between instances through Redis.
func NewRedisLimiterStore(client *redis.Client, prefix string, period time.Duration) (limiter.Store, error) {
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:          prefix,
		MaxRetry:        3,
		CleanUpInterval: period,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis limiter store %s: %w", prefix, err)
	}
	return store, nil
}

// RateLimit throttles requests per client IP. rate uses the limiter's
// "<limit>-<period>" notation, e.g. "20-M".
func RateLimit(store limiter.Store, rate string, trustForwardHeader bool, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}

	responder := newResponder(logger)
	instance := limiter.New(store, parsed, limiter.WithTrustForwardHeader(trustForwardHeader))
	middleware := stdlib.NewMiddleware(instance,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			responder.loggerFor(r.Context()).WarnContext(r.Context(), "rate limit reached", "remote_addr", r.RemoteAddr)
			responder.writeJSON(r.Context(), w, http.StatusTooManyRequests, swapResponseBody{
				Success:   false,
				Message:   statusMessage(http.StatusTooManyRequests),
				ErrorCode: statusCode(http.StatusTooManyRequests),
			})
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			responder.loggerFor(r.Context()).ErrorContext(r.Context(), "rate limiter failed", "error", err)
			responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{
				ErrorCode: "INTERNAL",
				Message:   statusMessage(http.StatusInternalServerError),
			})
		}),
	)
	return middleware.Handler, nil
}
