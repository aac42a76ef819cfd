package calendar

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingBound is returned when either end of a range is unset.
	ErrMissingBound = errors.New("calendar: range bound is required")
	// ErrInvertedRange is returned when a range ends before it starts.
	ErrInvertedRange = errors.New("calendar: start must not be after end")
)

// Range is an inclusive span of days.
type Range struct {
	Start Date
	End   Date
}

// NewRange builds a validated range.
func NewRange(start, end Date) (Range, error) {
	r := Range{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// ParseRange parses two YYYY-MM-DD strings into a validated range.
func ParseRange(start, end string) (Range, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Range{}, err
	}
	return NewRange(s, e)
}

// Validate checks that both bounds are set and Start <= End.
func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return ErrMissingBound
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: %s > %s", ErrInvertedRange, r.Start, r.End)
	}
	return nil
}

// Overlaps reports whether the two closed ranges share at least one day.
func (r Range) Overlaps(other Range) bool {
	return !r.Start.After(other.End) && !r.End.Before(other.Start)
}

// Contains reports whether d lies within the range.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// SingleDay reports whether the range starts and ends on the same day.
func (r Range) SingleDay() bool {
	return r.Start.Equal(r.End)
}

// Nights returns the number of nights between Start and End.
func (r Range) Nights() int {
	return r.Start.DaysUntil(r.End)
}

// String renders the range as "start..end".
func (r Range) String() string {
	return r.Start.String() + ".." + r.End.String()
}
