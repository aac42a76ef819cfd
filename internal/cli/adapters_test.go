package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familycabin/cabin/internal/application"
	"github.com/familycabin/cabin/internal/booking"
	"github.com/familycabin/cabin/internal/config"
	"github.com/familycabin/cabin/internal/persistence"
)

func TestStoreError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   error
		want error
	}{
		{persistence.ErrNotFound, application.ErrNotFound},
		{fmt.Errorf("%w: users.email", persistence.ErrDuplicate), application.ErrAlreadyExists},
		{persistence.ErrStaleState, application.ErrConflict},
		{persistence.ErrForeignKeyViolation, application.ErrConflict},
		{persistence.ErrConstraintViolation, application.ErrConflict},
	}
	for _, tc := range cases {
		got := storeError(tc.in)
		assert.ErrorIs(t, got, tc.want)
		assert.ErrorIs(t, got, tc.in, "original error stays in the chain")
	}

	assert.NoError(t, storeError(nil))

	conflict := &booking.ConflictError{}
	assert.Same(t, error(conflict), storeError(conflict))
}

// newTestApp wires the real services over a temporary SQLite database.
func newTestApp(t *testing.T) *app {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := openApp(ctx, config.Config{
		DatabasePath: filepath.Join(t.TempDir(), "cabin.db"),
		PublicURL:    "https://cabin.test",
		SessionTTL:   time.Hour,
		SwapTTL:      24 * time.Hour,
		Timezone:     time.UTC,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.storage.Migrate(ctx))
	return a
}

func TestServicesOverSQLite(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	root := application.Principal{UserID: "cli", IsAdmin: true}

	alice, err := a.users.CreateUser(ctx, application.CreateUserParams{Principal: root, Input: application.UserInput{
		Email: "alice@example.com", DisplayName: "Alice", Password: "correct-horse",
	}})
	require.NoError(t, err)
	bob, err := a.users.CreateUser(ctx, application.CreateUserParams{Principal: root, Input: application.UserInput{
		Email: "bob@example.com", DisplayName: "Bob", Password: "battery-staple",
	}})
	require.NoError(t, err)

	asAlice := application.Principal{UserID: alice.ID}
	asBob := application.Principal{UserID: bob.ID}

	ra, err := a.reservations.CreateReservation(ctx, application.CreateReservationParams{Principal: asAlice, Input: application.ReservationInput{
		StartDate: "2024-07-05", EndDate: "2024-07-12",
	}})
	require.NoError(t, err)

	// Friday hand-off: a stay may begin on the Friday the previous one ends.
	rb, err := a.reservations.CreateReservation(ctx, application.CreateReservationParams{Principal: asBob, Input: application.ReservationInput{
		StartDate: "2024-07-12", EndDate: "2024-07-19",
	}})
	require.NoError(t, err)

	_, err = a.reservations.CreateReservation(ctx, application.CreateReservationParams{Principal: asBob, Input: application.ReservationInput{
		StartDate: "2024-07-08", EndDate: "2024-07-10",
	}})
	var conflict *booking.ConflictError
	require.ErrorAs(t, err, &conflict, "the guard error reaches the caller unchanged")

	session, err := a.auth.Authenticate(ctx, application.AuthenticateParams{Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	principal, err := a.auth.ValidateSession(ctx, session.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, principal.UserID)

	swap, err := a.swaps.CreateSwap(ctx, application.CreateSwapParams{
		Principal:              asAlice,
		RequesterReservationID: ra.ID,
		TargetReservationID:    rb.ID,
	})
	require.NoError(t, err)

	resp, err := a.swaps.RespondByToken(ctx, swap.Token, booking.ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, booking.SwapAccepted, resp.Swap.Status)

	_, err = a.swaps.RespondByToken(ctx, swap.Token, booking.ActionAccept)
	var resolved *booking.AlreadyResolvedError
	require.ErrorAs(t, err, &resolved)

	first, err := a.reservations.GetReservation(ctx, asAlice, ra.ID)
	require.NoError(t, err)
	second, err := a.reservations.GetReservation(ctx, asAlice, rb.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, first.OwnerUserID)
	assert.Equal(t, alice.ID, second.OwnerUserID)

	err = a.users.DeleteUser(ctx, root, bob.ID)
	assert.ErrorIs(t, err, application.ErrConflict, "a member who still owns stays cannot be deleted")
}
