package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2024, time.July, 12, 16, 0, 0, 0, time.UTC)
	clock := NewClock(start)

	if got := clock.Advance(7 * 24 * time.Hour); !got.Equal(start.AddDate(0, 0, 7)) {
		t.Fatalf("Advance returned %v", got)
	}

	clock.Set(start)
	nowFn := clock.NowFunc()
	if got := nowFn(); !got.Equal(start) {
		t.Fatalf("NowFunc returned %v, want %v", got, start)
	}
}
