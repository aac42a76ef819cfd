package application

import (
	"time"

	"github.com/familycabin/cabin/internal/booking"
	"github.com/familycabin/cabin/internal/calendar"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// User represents a family member account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Reservation is a stay at the cabin. Exactly one of OwnerUserID and
// OwnerName is set.
type Reservation struct {
	ID          string
	OwnerUserID string
	OwnerName   string
	Dates       calendar.Range
	Notes       string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReservationView decorates a reservation with what a calendar needs to
// render it.
type ReservationView struct {
	Reservation
	OwnerDisplayName string
	Color            string
}

// ReservationInput captures caller provided reservation fields. Dates are
// YYYY-MM-DD strings. OwnerUserID and OwnerName are only honoured for
// administrators booking on behalf of someone else.
type ReservationInput struct {
	OwnerUserID string
	OwnerName   string
	StartDate   string
	EndDate     string
	Notes       string
}

// CreateReservationParams wraps the data required to create a reservation.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// UpdateReservationParams wraps the data required to update a reservation.
type UpdateReservationParams struct {
	Principal     Principal
	ReservationID string
	Input         ReservationInput
}

// ListReservationsParams bounds a reservation listing. Zero dates are open.
type ListReservationsParams struct {
	Principal Principal
	From      calendar.Date
	To        calendar.Date
}

// ReservationFilter narrows reservation queries at the repository.
type ReservationFilter struct {
	From        calendar.Date
	To          calendar.Date
	OwnerUserID string
}

// ReservationGuard is evaluated by the repository against the reservations
// overlapping a pending write, inside the write's transaction.
type ReservationGuard func(overlapping []Reservation) error

// SwapRequest is a proposal to exchange two reservations between two users.
type SwapRequest struct {
	ID                     string
	Token                  string
	RequesterID            string
	TargetUserID           string
	RequesterReservationID string
	TargetReservationID    string
	Status                 booking.SwapStatus
	Message                string
	ExpiresAt              time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
	ResolvedAt             *time.Time
}

// CreateSwapParams wraps the data required to propose a swap.
type CreateSwapParams struct {
	Principal              Principal
	RequesterReservationID string
	TargetReservationID    string
	Message                string
}

// ListSwapsParams narrows a swap listing to the caller's requests.
type ListSwapsParams struct {
	Principal Principal
	Status    booking.SwapStatus
}

// SwapFilter narrows swap queries at the repository.
type SwapFilter struct {
	ParticipantID string
	Status        booking.SwapStatus
}

// AcceptSwapParams describes the exchange performed when a swap is accepted.
type AcceptSwapParams struct {
	SwapID                 string
	RequesterID            string
	TargetUserID           string
	RequesterReservationID string
	TargetReservationID    string
	ResolvedAt             time.Time
}

// SwapResponse is the outcome of acting on a swap through an email link.
type SwapResponse struct {
	Swap    SwapRequest
	Action  booking.SwapAction
	Message string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}
