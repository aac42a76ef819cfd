package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/familycabin/cabin/internal/booking"
)

// memoryStore is an in-memory stand-in for the SQLite repositories. It
// honours the same guard semantics: writes re-check their preconditions under
// the lock and report ErrConflict when the stored state moved on.
type memoryStore struct {
	mu           sync.Mutex
	users        map[string]User
	reservations map[string]Reservation
	swaps        map[string]SwapRequest

	// failTransfer makes AcceptSwap fail after the status update but before
	// the ownership transfer, which must leave nothing applied.
	failTransfer error
	resolveCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:        make(map[string]User),
		reservations: make(map[string]Reservation),
		swaps:        make(map[string]SwapRequest),
	}
}

func (m *memoryStore) CreateUser(_ context.Context, user User, _ string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return User{}, ErrAlreadyExists
		}
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryStore) GetUser(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (m *memoryStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	for _, r := range m.reservations {
		if r.OwnerUserID == id {
			return ErrConflict
		}
	}
	delete(m.users, id)
	return nil
}

func (m *memoryStore) ListUsers(context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *memoryStore) CreateReservation(_ context.Context, reservation Reservation, guard ReservationGuard) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if guard != nil {
		if err := guard(m.overlappingLocked(reservation)); err != nil {
			return Reservation{}, err
		}
	}
	m.reservations[reservation.ID] = reservation
	return reservation, nil
}

func (m *memoryStore) UpdateReservation(_ context.Context, reservation Reservation, guard ReservationGuard) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[reservation.ID]; !ok {
		return Reservation{}, ErrNotFound
	}
	if guard != nil {
		if err := guard(m.overlappingLocked(reservation)); err != nil {
			return Reservation{}, err
		}
	}
	m.reservations[reservation.ID] = reservation
	return reservation, nil
}

func (m *memoryStore) overlappingLocked(candidate Reservation) []Reservation {
	var out []Reservation
	for _, r := range m.reservations {
		if r.ID == candidate.ID {
			continue
		}
		if booking.Overlaps(candidate.Dates.Start, candidate.Dates.End, r.Dates.Start, r.Dates.End) {
			out = append(out, r)
		}
	}
	return out
}

func (m *memoryStore) GetReservation(_ context.Context, id string) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryStore) ListReservations(_ context.Context, filter ReservationFilter) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reservation
	for _, r := range m.reservations {
		if !filter.From.IsZero() && r.Dates.End.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && r.Dates.Start.After(filter.To) {
			continue
		}
		if filter.OwnerUserID != "" && r.OwnerUserID != filter.OwnerUserID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dates.Start.Before(out[j].Dates.Start) })
	return out, nil
}

func (m *memoryStore) DeleteReservation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[id]; !ok {
		return ErrNotFound
	}
	delete(m.reservations, id)
	return nil
}

func (m *memoryStore) CreateSwap(_ context.Context, swap SwapRequest) (SwapRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.swaps {
		if existing.Status == booking.SwapPending &&
			existing.RequesterReservationID == swap.RequesterReservationID &&
			existing.TargetReservationID == swap.TargetReservationID {
			return SwapRequest{}, ErrAlreadyExists
		}
	}
	m.swaps[swap.ID] = swap
	return swap, nil
}

func (m *memoryStore) GetSwap(_ context.Context, id string) (SwapRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	swap, ok := m.swaps[id]
	if !ok {
		return SwapRequest{}, ErrNotFound
	}
	return swap, nil
}

func (m *memoryStore) GetSwapByToken(_ context.Context, token string) (SwapRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, swap := range m.swaps {
		if swap.Token == token {
			return swap, nil
		}
	}
	return SwapRequest{}, ErrNotFound
}

func (m *memoryStore) ListSwaps(_ context.Context, filter SwapFilter) ([]SwapRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SwapRequest
	for _, swap := range m.swaps {
		if filter.ParticipantID != "" && swap.RequesterID != filter.ParticipantID && swap.TargetUserID != filter.ParticipantID {
			continue
		}
		if filter.Status != "" && swap.Status != filter.Status {
			continue
		}
		out = append(out, swap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryStore) ResolveSwap(_ context.Context, id string, from, to booking.SwapStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveCalls++
	swap, ok := m.swaps[id]
	if !ok {
		return ErrNotFound
	}
	if swap.Status != from {
		return ErrConflict
	}
	m.setStatusLocked(&swap, to, at)
	return nil
}

func (m *memoryStore) AcceptSwap(_ context.Context, params AcceptSwapParams) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	swap, ok := m.swaps[params.SwapID]
	if !ok {
		return nil, ErrNotFound
	}
	if swap.Status != booking.SwapPending {
		return nil, ErrConflict
	}
	if m.failTransfer != nil {
		return nil, m.failTransfer
	}
	mine, ok := m.reservations[params.RequesterReservationID]
	if !ok || mine.OwnerUserID != params.RequesterID {
		return nil, ErrConflict
	}
	theirs, ok := m.reservations[params.TargetReservationID]
	if !ok || theirs.OwnerUserID != params.TargetUserID {
		return nil, ErrConflict
	}

	mine.OwnerUserID, theirs.OwnerUserID = params.TargetUserID, params.RequesterID
	mine.UpdatedAt, theirs.UpdatedAt = params.ResolvedAt, params.ResolvedAt
	m.reservations[mine.ID] = mine
	m.reservations[theirs.ID] = theirs
	m.setStatusLocked(&swap, booking.SwapAccepted, params.ResolvedAt)

	var cancelled []string
	for id, other := range m.swaps {
		if id == swap.ID || other.Status != booking.SwapPending {
			continue
		}
		if touches(other, mine.ID) || touches(other, theirs.ID) {
			m.setStatusLocked(&other, booking.SwapCancelled, params.ResolvedAt)
			cancelled = append(cancelled, id)
		}
	}
	sort.Strings(cancelled)
	return cancelled, nil
}

func (m *memoryStore) CancelExpiredSwaps(_ context.Context, reference time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, swap := range m.swaps {
		if booking.Expired(swap.Status, swap.ExpiresAt, reference) {
			m.setStatusLocked(&swap, booking.SwapCancelled, reference)
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryStore) setStatusLocked(swap *SwapRequest, status booking.SwapStatus, at time.Time) {
	swap.Status = status
	swap.UpdatedAt = at
	resolved := at
	swap.ResolvedAt = &resolved
	m.swaps[swap.ID] = *swap
}

func touches(swap SwapRequest, reservationID string) bool {
	return swap.RequesterReservationID == reservationID || swap.TargetReservationID == reservationID
}

// recordingNotifier captures notifications synchronously.
type recordingNotifier struct {
	mu     sync.Mutex
	events []SwapNotification
}

func (n *recordingNotifier) NotifySwap(_ context.Context, notification SwapNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification)
}

func (n *recordingNotifier) kinds() []SwapEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]SwapEvent, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Event)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
