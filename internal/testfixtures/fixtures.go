// Package testfixtures builds deterministic users, reservations, swap requests
// and sessions for persistence tests, plus a migrated SQLite harness to store
// them in.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/familycabin/cabin/internal/calendar"
	"github.com/familycabin/cabin/internal/persistence"
)

var (
	userCounter        uint64
	reservationCounter uint64
	swapCounter        uint64
	sessionCounter     uint64
)

// referenceTime is a Friday afternoon, the usual hand-off moment.
var referenceTime = time.Date(2024, time.July, 12, 15, 0, 0, 0, time.UTC)

// ReferenceTime returns the baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// UserOption configures a user fixture.
type UserOption func(*persistence.User)

// NewUser returns a user with a unique ID, email and name.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	user := persistence.User{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  fmt.Sprintf("Member %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated ID.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) { u.ID = id }
}

// WithUserEmail overrides the generated email.
func WithUserEmail(email string) UserOption {
	return func(u *persistence.User) { u.Email = email }
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(u *persistence.User) { u.DisplayName = name }
}

// WithUserAdmin sets the admin flag.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(u *persistence.User) { u.IsAdmin = isAdmin }
}

// ReservationOption configures a reservation fixture.
type ReservationOption func(*persistence.Reservation)

// NewReservation returns a Friday-to-Friday week owned by ownerUserID. Each
// call books the week after the previous one so fixtures never overlap unless
// a test asks for it.
func NewReservation(ownerUserID string, opts ...ReservationOption) persistence.Reservation {
	idx := atomic.AddUint64(&reservationCounter, 1)
	start := calendar.DateOf(referenceTime).AddDays(int(idx) * 7)
	reservation := persistence.Reservation{
		ID:          fmt.Sprintf("reservation-%03d", idx),
		OwnerUserID: ownerUserID,
		StartDate:   start,
		EndDate:     start.AddDays(7),
		CreatedBy:   ownerUserID,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&reservation)
	}
	return reservation
}

// WithReservationID overrides the generated ID.
func WithReservationID(id string) ReservationOption {
	return func(r *persistence.Reservation) { r.ID = id }
}

// WithDates sets the stay's first and last day, both YYYY-MM-DD.
func WithDates(start, end string) ReservationOption {
	return func(r *persistence.Reservation) {
		r.StartDate = calendar.MustParse(start)
		r.EndDate = calendar.MustParse(end)
	}
}

// WithGuestOwner books the stay under a free-text name instead of a member.
func WithGuestOwner(name string) ReservationOption {
	return func(r *persistence.Reservation) {
		r.OwnerUserID = ""
		r.OwnerName = name
	}
}

// WithNotes sets the reservation notes.
func WithNotes(notes string) ReservationOption {
	return func(r *persistence.Reservation) { r.Notes = notes }
}

// SwapOption configures a swap request fixture.
type SwapOption func(*persistence.SwapRequest)

// NewSwap returns a pending request from requester's reservation to
// target's, expiring a week after ReferenceTime.
func NewSwap(requester, requesterReservation, target, targetReservation string, opts ...SwapOption) persistence.SwapRequest {
	idx := atomic.AddUint64(&swapCounter, 1)
	id := fmt.Sprintf("swap-%03d", idx)
	swap := persistence.SwapRequest{
		ID:                     id,
		Token:                  "token-" + id,
		RequesterID:            requester,
		TargetUserID:           target,
		RequesterReservationID: requesterReservation,
		TargetReservationID:    targetReservation,
		Status:                 "pending",
		ExpiresAt:              referenceTime.AddDate(0, 0, 7),
		CreatedAt:              referenceTime.Add(time.Duration(idx) * time.Second),
		UpdatedAt:              referenceTime.Add(time.Duration(idx) * time.Second),
	}
	for _, opt := range opts {
		opt(&swap)
	}
	return swap
}

// WithSwapStatus overrides the request status.
func WithSwapStatus(status string) SwapOption {
	return func(s *persistence.SwapRequest) { s.Status = status }
}

// WithSwapExpiry overrides the response deadline.
func WithSwapExpiry(at time.Time) SwapOption {
	return func(s *persistence.SwapRequest) { s.ExpiresAt = at }
}

// WithSwapMessage sets the note shown to the target.
func WithSwapMessage(message string) SwapOption {
	return func(s *persistence.SwapRequest) { s.Message = message }
}

// SessionOption configures a session fixture.
type SessionOption func(*persistence.Session)

// NewSession returns a session for userID valid for a day after
// ReferenceTime.
func NewSession(userID string, opts ...SessionOption) persistence.Session {
	idx := atomic.AddUint64(&sessionCounter, 1)
	session := persistence.Session{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    userID,
		Token:     fmt.Sprintf("session-token-%03d", idx),
		ExpiresAt: referenceTime.Add(24 * time.Hour),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&session)
	}
	return session
}

// WithSessionExpiry overrides the expiry.
func WithSessionExpiry(at time.Time) SessionOption {
	return func(s *persistence.Session) { s.ExpiresAt = at }
}

// WithSessionToken overrides the token.
func WithSessionToken(token string) SessionOption {
	return func(s *persistence.Session) { s.Token = token }
}
