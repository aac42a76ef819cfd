// Package booking holds the reservation rules shared by the service layer: the
// overlap test with its Friday hand-off allowance, deterministic owner colors,
// and the swap request lifecycle.
package booking

import (
	"fmt"
	"strings"

	"github.com/familycabin/cabin/internal/calendar"
)

// Reservation is the minimal view of a stored booking needed for conflict checks.
type Reservation struct {
	ID    string
	Dates calendar.Range
}

// Overlaps reports whether [aStart,aEnd] and [bStart,bEnd] share a day.
func Overlaps(aStart, aEnd, bStart, bEnd calendar.Date) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}

// FridayHandoff reports whether candidate and existing meet on a single shared
// Friday: one stay ends at noon and the other begins at noon. Single-day
// reservations never take part in a hand-off, so a Friday carries at most one
// check-out and one check-in.
func FridayHandoff(candidate, existing calendar.Range) bool {
	if candidate.SingleDay() || existing.SingleDay() {
		return false
	}
	if candidate.Start.Equal(existing.End) && candidate.Start.IsFriday() {
		return true
	}
	if candidate.End.Equal(existing.Start) && candidate.End.IsFriday() {
		return true
	}
	return false
}

// Conflicts reports whether candidate cannot coexist with existing. The
// existing reservation is skipped when its ID equals excludeID, which lets an
// edit be checked against every other booking.
func Conflicts(candidate calendar.Range, existing Reservation, excludeID string) bool {
	if excludeID != "" && existing.ID == excludeID {
		return false
	}
	if !Overlaps(candidate.Start, candidate.End, existing.Dates.Start, existing.Dates.End) {
		return false
	}
	if FridayHandoff(candidate, existing.Dates) {
		return false
	}
	return true
}

// FindConflicts returns every existing reservation that conflicts with the
// candidate range, in input order.
func FindConflicts(candidate calendar.Range, existing []Reservation, excludeID string) []Reservation {
	var conflicts []Reservation
	for _, res := range existing {
		if Conflicts(candidate, res, excludeID) {
			conflicts = append(conflicts, res)
		}
	}
	return conflicts
}

// CheckAvailability returns a *ConflictError when candidate clashes with any
// existing reservation.
func CheckAvailability(candidate calendar.Range, existing []Reservation, excludeID string) error {
	conflicts := FindConflicts(candidate, existing, excludeID)
	if len(conflicts) == 0 {
		return nil
	}
	return &ConflictError{Candidate: candidate, With: conflicts}
}

// ConflictError describes a rejected date range and the bookings it collides with.
type ConflictError struct {
	Candidate calendar.Range
	With      []Reservation
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	ranges := make([]string, 0, len(e.With))
	for _, res := range e.With {
		ranges = append(ranges, fmt.Sprintf("%s to %s", res.Dates.Start, res.Dates.End))
	}
	return fmt.Sprintf("%s to %s overlaps an existing reservation (%s)",
		e.Candidate.Start, e.Candidate.End, strings.Join(ranges, ", "))
}
