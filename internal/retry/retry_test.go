package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func noSleep(h *Helper) *Helper {
	h.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return h
}

func TestHelperRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	h := noSleep(New(DefaultConfig(), func(err error) bool { return errors.Is(err, errTransient) }))

	calls := 0
	err := h.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestHelperStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	permanent := errors.New("permanent")
	h := noSleep(New(DefaultConfig(), func(err error) bool { return errors.Is(err, errTransient) }))

	calls := 0
	err := h.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestHelperGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	h := noSleep(New(cfg, func(error) bool { return true }))

	calls := 0
	err := h.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected wrapped transient error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestHelperHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	h := New(Config{MaxRetries: 5, InitialDelay: time.Hour, BackoffFactor: 2}, func(error) bool { return true })

	calls := 0
	err := h.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}
