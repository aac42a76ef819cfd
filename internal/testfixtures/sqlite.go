package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/familycabin/cabin/internal/persistence"
	"github.com/familycabin/cabin/internal/persistence/sqlite"
)

// SQLiteHarness exposes the repositories of a migrated, file-backed SQLite
// database living in the test's temporary directory.
type SQLiteHarness struct {
	Storage      *sqlite.Storage
	Users        persistence.UserRepository
	Reservations persistence.ReservationRepository
	Swaps        persistence.SwapRepository
	Sessions     persistence.SessionRepository

	tb testing.TB
}

// NewSQLiteHarness opens and migrates a fresh database. It is closed when
// the test ends.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	storage, err := sqlite.OpenPath(filepath.Join(tb.TempDir(), "cabin.db"))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() {
		_ = storage.Close()
	})
	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	return &SQLiteHarness{
		Storage:      storage,
		Users:        storage.Users,
		Reservations: storage.Reservations,
		Swaps:        storage.Swaps,
		Sessions:     storage.Sessions,
		tb:           tb,
	}
}

// SeedUser stores a user fixture and returns it.
func (h *SQLiteHarness) SeedUser(opts ...UserOption) persistence.User {
	h.tb.Helper()
	user := NewUser(opts...)
	if err := h.Users.CreateUser(context.Background(), user); err != nil {
		h.tb.Fatalf("seed user %s: %v", user.ID, err)
	}
	return user
}

// SeedReservation stores a reservation fixture without an overlap guard.
func (h *SQLiteHarness) SeedReservation(ownerUserID string, opts ...ReservationOption) persistence.Reservation {
	h.tb.Helper()
	reservation := NewReservation(ownerUserID, opts...)
	if err := h.Reservations.CreateReservation(context.Background(), reservation, nil); err != nil {
		h.tb.Fatalf("seed reservation %s: %v", reservation.ID, err)
	}
	return reservation
}

// SeedSwap stores a swap request fixture.
func (h *SQLiteHarness) SeedSwap(requester, requesterReservation, target, targetReservation string, opts ...SwapOption) persistence.SwapRequest {
	h.tb.Helper()
	swap := NewSwap(requester, requesterReservation, target, targetReservation, opts...)
	if err := h.Swaps.CreateSwap(context.Background(), swap); err != nil {
		h.tb.Fatalf("seed swap %s: %v", swap.ID, err)
	}
	return swap
}

// SeedSession stores a session fixture.
func (h *SQLiteHarness) SeedSession(userID string, opts ...SessionOption) persistence.Session {
	h.tb.Helper()
	session, err := h.Sessions.CreateSession(context.Background(), NewSession(userID, opts...))
	if err != nil {
		h.tb.Fatalf("seed session for %s: %v", userID, err)
	}
	return session
}
