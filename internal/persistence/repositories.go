package persistence

import (
	"context"
	"time"

	"github.com/familycabin/cabin/internal/calendar"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// ReservationFilter narrows reservation queries to those touching [From, To].
// A zero bound is open.
type ReservationFilter struct {
	From        calendar.Date
	To          calendar.Date
	OwnerUserID string
}

// ReservationGuard inspects the reservations overlapping a pending write,
// inside the write's transaction. A non-nil error aborts the write and is
// returned unchanged to the caller.
type ReservationGuard func(overlapping []Reservation) error

// ReservationRepository stores reservations. Create and Update run the guard
// and the write in one serialized transaction so two racing bookings cannot
// both pass the availability check.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation, guard ReservationGuard) error
	UpdateReservation(ctx context.Context, reservation Reservation, guard ReservationGuard) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
}

// SwapFilter narrows swap request queries.
type SwapFilter struct {
	// ParticipantID matches requests where the user is requester or target.
	ParticipantID string
	Status        string
}

// AcceptSwapParams describes the all-or-nothing exchange performed on accept.
type AcceptSwapParams struct {
	SwapID                 string
	RequesterID            string
	TargetUserID           string
	RequesterReservationID string
	TargetReservationID    string
	ResolvedAt             time.Time
}

// SwapRepository stores swap requests.
type SwapRepository interface {
	CreateSwap(ctx context.Context, swap SwapRequest) error
	GetSwap(ctx context.Context, id string) (SwapRequest, error)
	GetSwapByToken(ctx context.Context, token string) (SwapRequest, error)
	ListSwaps(ctx context.Context, filter SwapFilter) ([]SwapRequest, error)
	// ResolveSwap moves a request from one status to another, failing with
	// ErrStaleState when the stored status is no longer from.
	ResolveSwap(ctx context.Context, id, from, to string, at time.Time) error
	// AcceptSwap marks the request accepted, exchanges both reservation owners
	// and cancels every other pending request touching either reservation. It
	// returns the IDs of the requests it cancelled. Nothing is written unless
	// every step succeeds.
	AcceptSwap(ctx context.Context, params AcceptSwapParams) ([]string, error)
	// CancelExpiredSwaps cancels every pending request whose deadline is at or
	// before reference and returns their IDs.
	CancelExpiredSwaps(ctx context.Context, reference time.Time) ([]string, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
