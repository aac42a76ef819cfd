package persistence

import (
	"time"

	"github.com/familycabin/cabin/internal/calendar"
)

// User represents a family member account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reservation is a stay at the cabin. Exactly one of OwnerUserID and
// OwnerName is set; OwnerName holds a free-text name for guests without an
// account.
type Reservation struct {
	ID          string
	OwnerUserID string
	OwnerName   string
	StartDate   calendar.Date
	EndDate     calendar.Date
	Notes       string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SwapRequest is a proposal to exchange ownership of two reservations.
type SwapRequest struct {
	ID                     string
	Token                  string
	RequesterID            string
	TargetUserID           string
	RequesterReservationID string
	TargetReservationID    string
	Status                 string
	Message                string
	ExpiresAt              time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
	ResolvedAt             *time.Time
}

// Session represents an authentication session persisted for a user.
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
