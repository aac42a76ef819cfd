// Package retry runs idempotent operations with exponential backoff.
//
// Only reads may be retried. Mutations such as accepting a swap must never be
// wrapped in a Helper because a retry after an ambiguous failure could apply
// the effect twice.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config configures retry behaviour.
type Config struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultConfig returns the backoff used for store reads and upstream GETs.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Classifier reports whether err is transient and worth another attempt.
type Classifier func(err error) bool

// Helper retries functions whose errors the classifier marks as transient.
type Helper struct {
	config    Config
	retryable Classifier
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a Helper. A nil classifier retries nothing.
func New(config Config, retryable Classifier) *Helper {
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}
	return &Helper{config: config, retryable: retryable, sleep: sleepContext}
}

// Do executes fn, retrying transient failures up to MaxRetries times.
func (h *Helper) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if h == nil {
		return fn(ctx)
	}

	var lastErr error
	delay := h.config.InitialDelay

	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := h.sleep(ctx, delay); err != nil {
				return err
			}
			delay = time.Duration(float64(delay) * h.config.BackoffFactor)
			if h.config.MaxDelay > 0 && delay > h.config.MaxDelay {
				delay = h.config.MaxDelay
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !h.retryable(err) {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", h.config.MaxRetries, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
