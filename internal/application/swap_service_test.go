package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/familycabin/cabin/internal/booking"
	"github.com/familycabin/cabin/internal/calendar"
)

type swapFixture struct {
	svc      *SwapService
	store    *memoryStore
	notifier *recordingNotifier
	clock    *fakeClock
}

func newSwapFixture(t *testing.T) swapFixture {
	t.Helper()
	store := newMemoryStore()
	store.users["alice"] = User{ID: "alice", DisplayName: "Alice", Email: "alice@example.com"}
	store.users["bob"] = User{ID: "bob", DisplayName: "Bob", Email: "bob@example.com"}
	store.users["carol"] = User{ID: "carol", DisplayName: "Carol", Email: "carol@example.com"}
	store.reservations["ra"] = Reservation{ID: "ra", OwnerUserID: "alice", Dates: calendar.Range{Start: calendar.MustParse("2024-07-05"), End: calendar.MustParse("2024-07-12")}}
	store.reservations["rb"] = Reservation{ID: "rb", OwnerUserID: "bob", Dates: calendar.Range{Start: calendar.MustParse("2024-08-02"), End: calendar.MustParse("2024-08-09")}}
	store.reservations["rc"] = Reservation{ID: "rc", OwnerUserID: "carol", Dates: calendar.Range{Start: calendar.MustParse("2024-09-06"), End: calendar.MustParse("2024-09-13")}}
	store.reservations["rx"] = Reservation{ID: "rx", OwnerName: "Uncle Joe", Dates: calendar.Range{Start: calendar.MustParse("2024-10-04"), End: calendar.MustParse("2024-10-11")}}

	clock := &fakeClock{now: time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}
	var mu sync.Mutex
	seq := 0
	gen := func(prefix string) func() string {
		return func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return prefix + string(rune('0'+seq))
		}
	}
	svc := NewSwapService(store, store, store, notifier, gen("swap-"), gen("token-"), clock.Now, 24*time.Hour)
	return swapFixture{svc: svc, store: store, notifier: notifier, clock: clock}
}

func (f swapFixture) propose(t *testing.T, requester Principal, mine, theirs string) SwapRequest {
	t.Helper()
	swap, err := f.svc.CreateSwap(context.Background(), CreateSwapParams{Principal: requester, RequesterReservationID: mine, TargetReservationID: theirs, Message: "trade?"})
	if err != nil {
		t.Fatalf("CreateSwap failed: %v", err)
	}
	return swap
}

func TestSwapService_CreateSwap(t *testing.T) {
	t.Parallel()

	t.Run("creates a pending request with token and deadline", func(t *testing.T) {
		t.Parallel()
		f := newSwapFixture(t)
		swap := f.propose(t, alice, "ra", "rb")
		if swap.Status != booking.SwapPending || swap.TargetUserID != "bob" || swap.Token == "" {
			t.Fatalf("unexpected swap: %#v", swap)
		}
		if !swap.ExpiresAt.Equal(f.clock.Now().Add(24 * time.Hour)) {
			t.Fatalf("expected deadline one TTL ahead, got %s", swap.ExpiresAt)
		}
		if kinds := f.notifier.kinds(); len(kinds) != 1 || kinds[0] != SwapEventRequested {
			t.Fatalf("expected a requested notification, got %v", kinds)
		}
		if n := f.notifier.events[0]; n.Target.Email != "bob@example.com" || n.RequesterReservation.ID != "ra" {
			t.Fatalf("notification missing context: %#v", n)
		}
	})

	t.Run("rejects invalid proposals", func(t *testing.T) {
		t.Parallel()
		f := newSwapFixture(t)
		ctx := context.Background()

		if _, err := f.svc.CreateSwap(ctx, CreateSwapParams{Principal: alice, RequesterReservationID: "rb", TargetReservationID: "rc"}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized for someone else's reservation, got %v", err)
		}
		if _, err := f.svc.CreateSwap(ctx, CreateSwapParams{Principal: alice, RequesterReservationID: "ra", TargetReservationID: "ra"}); ErrorKind(err) != "validation" {
			t.Fatalf("expected validation error for self swap, got %v", err)
		}
		if _, err := f.svc.CreateSwap(ctx, CreateSwapParams{Principal: alice, RequesterReservationID: "ra", TargetReservationID: "rx"}); ErrorKind(err) != "validation" {
			t.Fatalf("expected validation error for custom owner target, got %v", err)
		}
		if _, err := f.svc.CreateSwap(ctx, CreateSwapParams{Principal: alice, RequesterReservationID: "ra", TargetReservationID: "missing"}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("refuses a second pending request for the same pair", func(t *testing.T) {
		t.Parallel()
		f := newSwapFixture(t)
		f.propose(t, alice, "ra", "rb")
		_, err := f.svc.CreateSwap(context.Background(), CreateSwapParams{Principal: alice, RequesterReservationID: "ra", TargetReservationID: "rb"})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestSwapService_AcceptSwap(t *testing.T) {
	t.Parallel()

	t.Run("exchanges owners and cancels competing requests", func(t *testing.T) {
		t.Parallel()
		f := newSwapFixture(t)
		swap := f.propose(t, alice, "ra", "rb")
		competing := f.propose(t, carol, "rc", "rb")

		accepted, err := f.svc.AcceptSwap(context.Background(), bob, swap.ID)
		if err != nil {
			t.Fatalf("AcceptSwap failed: %v", err)
		}
		if accepted.Status != booking.SwapAccepted || accepted.ResolvedAt == nil {
			t.Fatalf("unexpected accepted swap: %#v", accepted)
		}
		if f.store.reservations["ra"].OwnerUserID != "bob" || f.store.reservations["rb"].OwnerUserID != "alice" {
			t.Fatalf("owners were not exchanged: %#v", f.store.reservations)
		}
		if got := f.store.swaps[competing.ID].Status; got != booking.SwapCancelled {
			t.Fatalf("expected competing swap cancelled, got %s", got)
		}
	})

	t.Run("only the target or an administrator may accept", func(t *testing.T) {
		t.Parallel()
		f := newSwapFixture(t)
		swap := f.propose(t, alice, "ra", "rb")
		if _, err := f.svc.AcceptSwap(context.Background(), alice, swap.ID); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized for requester, got %v", err)
		}
		if _, err := f.svc.AcceptSwap(context.Background(), carol, swap.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for outsiders, got %v", err)
		}
		if _, err := f.svc.AcceptSwap(context.Background(), admin, swap.ID); err != nil {
			t.Fatalf("expected admin accept to succeed, got %v", err)
		}
	})

	t.Run("accepting twice reports the resolved status", func(t *testing.T) {
		t.Parallel()
		f := newSwapFixture(t)
		swap := f.propose(t, alice, "ra", "rb")
		if _, err := f.svc.AcceptSwap(context.Background(), bob, swap.ID); err != nil {
			t.Fatalf("first accept failed: %v", err)
		}
		_, err := f.svc.AcceptSwap(context.Background(), bob, swap.ID)
		var resolved *booking.AlreadyResolvedError
		if !errors.As(err, &resolved) || resolved.Status != booking.SwapAccepted {
			t.Fatalf("expected AlreadyResolvedError(accepted), got %v", err)
		}
		if f.store.reservations["ra"].OwnerUserID != "bob" {
			t.Fatalf("second accept must not change ownership again")
		}
	})

	t.Run("concurrent accepts apply the exchange once", func(t *testing.T) {
		t.Parallel()
		f := newSwapFixture(t)
		swap := f.propose(t, alice, "ra", "rb")

		var wg sync.WaitGroup
		errs := make(chan error, 6)
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.AcceptSwap(context.Background(), bob, swap.ID)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			var resolved *booking.AlreadyResolvedError
			if !errors.As(err, &resolved) {
				t.Errorf("unexpected error: %v", err)
			}
		}
		if succeeded != 1 {
			t.Fatalf("expected exactly one successful accept, got %d", succeeded)
		}
		if f.store.reservations["ra"].OwnerUserID != "bob" || f.store.reservations["rb"].OwnerUserID != "alice" {
			t.Fatalf("owners not exchanged exactly once: %#v", f.store.reservations)
		}
	})

	t.Run("a failing transfer leaves everything untouched", func(t *testing.T) {
		t.Parallel()
		f := newSwapFixture(t)
		swap := f.propose(t, alice, "ra", "rb")
		f.store.failTransfer = errors.New("disk full")

		if _, err := f.svc.AcceptSwap(context.Background(), bob, swap.ID); !errors.Is(err, ErrUpstream) {
			t.Fatalf("expected ErrUpstream, got %v", err)
		}
		if f.store.swaps[swap.ID].Status != booking.SwapPending {
			t.Fatalf("expected swap to stay pending")
		}
		if f.store.reservations["ra"].OwnerUserID != "alice" || f.store.reservations["rb"].OwnerUserID != "bob" {
			t.Fatalf("expected ownership unchanged")
		}
	})

	t.Run("a reservation that changed hands blocks the exchange", func(t *testing.T) {
		t.Parallel()
		f := newSwapFixture(t)
		swap := f.propose(t, alice, "ra", "rb")
		moved := f.store.reservations["rb"]
		moved.OwnerUserID = "carol"
		f.store.reservations["rb"] = moved

		if _, err := f.svc.AcceptSwap(context.Background(), bob, swap.ID); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if f.store.swaps[swap.ID].Status != booking.SwapPending || f.store.reservations["ra"].OwnerUserID != "alice" {
			t.Fatalf("expected nothing applied")
		}
	})

	t.Run("an expired request is cancelled and reported", func(t *testing.T) {
		t.Parallel()
		f := newSwapFixture(t)
		swap := f.propose(t, alice, "ra", "rb")
		f.clock.Advance(24*time.Hour + time.Second)

		if _, err := f.svc.AcceptSwap(context.Background(), bob, swap.ID); !errors.Is(err, ErrExpired) {
			t.Fatalf("expected ErrExpired, got %v", err)
		}
		got, err := f.svc.GetSwap(context.Background(), bob, swap.ID)
		if err != nil {
			t.Fatalf("GetSwap failed: %v", err)
		}
		if got.Status != booking.SwapCancelled {
			t.Fatalf("expected cancelled after expiry, got %s", got.Status)
		}
		if f.store.reservations["ra"].OwnerUserID != "alice" {
			t.Fatalf("expired swap must not exchange reservations")
		}
	})
}

func TestSwapService_DeclineAndCancel(t *testing.T) {
	t.Parallel()

	f := newSwapFixture(t)
	ctx := context.Background()
	first := f.propose(t, alice, "ra", "rb")
	second := f.propose(t, alice, "ra", "rc")

	if _, err := f.svc.DeclineSwap(ctx, alice, first.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected requester to be unable to decline, got %v", err)
	}
	declined, err := f.svc.DeclineSwap(ctx, bob, first.ID)
	if err != nil || declined.Status != booking.SwapDeclined {
		t.Fatalf("expected declined, got %#v (%v)", declined, err)
	}

	if _, err := f.svc.CancelSwap(ctx, carol, second.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected target to be unable to cancel, got %v", err)
	}
	f.clock.Advance(48 * time.Hour)
	cancelled, err := f.svc.CancelSwap(ctx, alice, second.ID)
	if err != nil || cancelled.Status != booking.SwapCancelled {
		t.Fatalf("expected cancel to succeed even after the deadline, got %#v (%v)", cancelled, err)
	}

	kinds := f.notifier.kinds()
	want := []SwapEvent{SwapEventRequested, SwapEventRequested, SwapEventDeclined, SwapEventCancelled}
	if len(kinds) != len(want) {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, kinds)
		}
	}
}

func TestSwapService_RespondByToken(t *testing.T) {
	t.Parallel()

	t.Run("accepts through the emailed token", func(t *testing.T) {
		t.Parallel()
		f := newSwapFixture(t)
		swap := f.propose(t, alice, "ra", "rb")

		resp, err := f.svc.RespondByToken(context.Background(), swap.Token, booking.ActionAccept)
		if err != nil {
			t.Fatalf("RespondByToken failed: %v", err)
		}
		if resp.Action != booking.ActionAccept || resp.Swap.Status != booking.SwapAccepted || resp.Message == "" {
			t.Fatalf("unexpected response: %#v", resp)
		}

		_, err = f.svc.RespondByToken(context.Background(), swap.Token, booking.ActionDecline)
		var resolved *booking.AlreadyResolvedError
		if !errors.As(err, &resolved) {
			t.Fatalf("expected AlreadyResolvedError on reuse, got %v", err)
		}
	})

	t.Run("validates token and action", func(t *testing.T) {
		t.Parallel()
		f := newSwapFixture(t)
		if _, err := f.svc.RespondByToken(context.Background(), "", booking.ActionCancel); ErrorKind(err) != "validation" {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, err := f.svc.RespondByToken(context.Background(), "unknown", booking.ActionAccept); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSwapService_ListAndSweep(t *testing.T) {
	t.Parallel()

	f := newSwapFixture(t)
	ctx := context.Background()
	old := f.propose(t, alice, "ra", "rb")
	f.clock.Advance(23 * time.Hour)
	fresh := f.propose(t, carol, "rc", "rb")
	f.clock.Advance(2 * time.Hour)

	pending, err := f.svc.ListSwaps(ctx, ListSwapsParams{Principal: bob, Status: booking.SwapPending})
	if err != nil {
		t.Fatalf("ListSwaps failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != fresh.ID {
		t.Fatalf("expected only the fresh request pending, got %#v", pending)
	}
	if f.store.swaps[old.ID].Status != booking.SwapCancelled {
		t.Fatalf("expected listing to persist expiry of %s", old.ID)
	}

	mine, err := f.svc.ListSwaps(ctx, ListSwapsParams{Principal: alice})
	if err != nil || len(mine) != 1 || mine[0].ID != old.ID {
		t.Fatalf("expected alice to see her request, got %#v (%v)", mine, err)
	}

	f.clock.Advance(24 * time.Hour)
	ids, err := f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != fresh.ID {
		t.Fatalf("expected sweep to cancel %s, got %v", fresh.ID, ids)
	}
	if _, err := f.svc.ListSwaps(ctx, ListSwapsParams{Principal: bob, Status: "bogus"}); ErrorKind(err) != "validation" {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}
