package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/familycabin/cabin/internal/booking"
)

const maxSwapMessageLength = 500

// DefaultSwapTTL is how long a swap request stays open.
const DefaultSwapTTL = 7 * 24 * time.Hour

// SwapRepository captures the persistence operations needed by the swap
// service. ResolveSwap and AcceptSwap return ErrConflict when the stored
// state no longer matches their guards; AcceptSwap applies nothing in that
// case.
type SwapRepository interface {
	CreateSwap(ctx context.Context, swap SwapRequest) (SwapRequest, error)
	GetSwap(ctx context.Context, id string) (SwapRequest, error)
	GetSwapByToken(ctx context.Context, token string) (SwapRequest, error)
	ListSwaps(ctx context.Context, filter SwapFilter) ([]SwapRequest, error)
	ResolveSwap(ctx context.Context, id string, from, to booking.SwapStatus, at time.Time) error
	AcceptSwap(ctx context.Context, params AcceptSwapParams) ([]string, error)
	CancelExpiredSwaps(ctx context.Context, reference time.Time) ([]string, error)
}

// ReservationReader looks up reservations.
type ReservationReader interface {
	GetReservation(ctx context.Context, id string) (Reservation, error)
}

// SwapEvent names a notification-worthy swap transition.
type SwapEvent string

const (
	SwapEventRequested SwapEvent = "requested"
	SwapEventAccepted  SwapEvent = "accepted"
	SwapEventDeclined  SwapEvent = "declined"
	SwapEventCancelled SwapEvent = "cancelled"
)

// SwapNotification carries everything a notifier needs to describe a swap.
type SwapNotification struct {
	Event                SwapEvent
	Swap                 SwapRequest
	Requester            User
	Target               User
	RequesterReservation Reservation
	TargetReservation    Reservation
}

// Notifier delivers swap notifications. Implementations must not block the
// caller on delivery and report their own failures.
type Notifier interface {
	NotifySwap(ctx context.Context, notification SwapNotification)
}

// SwapService runs the swap request workflow.
type SwapService struct {
	swaps          SwapRepository
	reservations   ReservationReader
	users          UserDirectory
	notifier       Notifier
	idGenerator    func() string
	tokenGenerator func() string
	now            func() time.Time
	ttl            time.Duration
	logger         *slog.Logger
}

// NewSwapService wires dependencies for the swap service.
func NewSwapService(swaps SwapRepository, reservations ReservationReader, users UserDirectory, notifier Notifier, idGenerator, tokenGenerator func() string, now func() time.Time, ttl time.Duration) *SwapService {
	return NewSwapServiceWithLogger(swaps, reservations, users, notifier, idGenerator, tokenGenerator, now, ttl, nil)
}

// NewSwapServiceWithLogger wires dependencies with a specified logger.
func NewSwapServiceWithLogger(swaps SwapRepository, reservations ReservationReader, users UserDirectory, notifier Notifier, idGenerator, tokenGenerator func() string, now func() time.Time, ttl time.Duration, logger *slog.Logger) *SwapService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if tokenGenerator == nil {
		tokenGenerator = idGenerator
	}
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = DefaultSwapTTL
	}
	return &SwapService{
		swaps:          swaps,
		reservations:   reservations,
		users:          users,
		notifier:       notifier,
		idGenerator:    idGenerator,
		tokenGenerator: tokenGenerator,
		now:            now,
		ttl:            ttl,
		logger:         defaultLogger(logger),
	}
}

func (s *SwapService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SwapService", operation, attrs...)
}

// CreateSwap proposes exchanging one of the caller's reservations for a
// reservation owned by another member.
func (s *SwapService) CreateSwap(ctx context.Context, params CreateSwapParams) (swap SwapRequest, err error) {
	if s == nil {
		return SwapRequest{}, fmt.Errorf("SwapService is nil")
	}
	if s.swaps == nil || s.reservations == nil {
		return SwapRequest{}, fmt.Errorf("swap stores not configured")
	}

	logger := s.loggerWith(ctx, "CreateSwap",
		"principal_id", params.Principal.UserID,
		"requester_reservation_id", params.RequesterReservationID,
		"target_reservation_id", params.TargetReservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create swap request", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "swap request created", "swap_id", swap.ID, "target_user_id", swap.TargetUserID)
	}()

	if params.Principal.UserID == "" {
		return SwapRequest{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	requesterResID := strings.TrimSpace(params.RequesterReservationID)
	targetResID := strings.TrimSpace(params.TargetReservationID)
	if requesterResID == "" {
		vErr.add("requester_reservation_id", "reservation is required")
	}
	if targetResID == "" {
		vErr.add("target_reservation_id", "reservation is required")
	}
	if requesterResID != "" && requesterResID == targetResID {
		vErr.add("target_reservation_id", "cannot swap a reservation with itself")
	}
	message := strings.TrimSpace(params.Message)
	if utf8.RuneCountInString(message) > maxSwapMessageLength {
		vErr.add("message", fmt.Sprintf("message must be at most %d characters", maxSwapMessageLength))
	}
	if vErr.HasErrors() {
		return SwapRequest{}, vErr
	}

	mine, err := s.reservations.GetReservation(ctx, requesterResID)
	if err != nil {
		return SwapRequest{}, upstream(err)
	}
	if mine.OwnerUserID != params.Principal.UserID {
		return SwapRequest{}, ErrUnauthorized
	}
	theirs, err := s.reservations.GetReservation(ctx, targetResID)
	if err != nil {
		return SwapRequest{}, upstream(err)
	}
	if theirs.OwnerUserID == "" {
		return SwapRequest{}, fieldError("target_reservation_id", "reservation is not held by a registered member")
	}
	if theirs.OwnerUserID == params.Principal.UserID {
		return SwapRequest{}, fieldError("target_reservation_id", "reservation already belongs to you")
	}

	now := s.now()
	swap = SwapRequest{
		ID:                     s.idGenerator(),
		Token:                  s.tokenGenerator(),
		RequesterID:            params.Principal.UserID,
		TargetUserID:           theirs.OwnerUserID,
		RequesterReservationID: mine.ID,
		TargetReservationID:    theirs.ID,
		Status:                 booking.SwapPending,
		Message:                message,
		ExpiresAt:              now.Add(s.ttl),
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	swap, err = s.swaps.CreateSwap(ctx, swap)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return SwapRequest{}, fmt.Errorf("%w: a pending request for these reservations already exists", ErrAlreadyExists)
		}
		return SwapRequest{}, upstream(err)
	}

	s.notify(ctx, logger, SwapEventRequested, swap)
	return swap, nil
}

// AcceptSwap exchanges the two reservations. Only the target member or an
// administrator may accept.
func (s *SwapService) AcceptSwap(ctx context.Context, principal Principal, id string) (SwapRequest, error) {
	return s.act(ctx, "AcceptSwap", principal, id, booking.ActionAccept)
}

// DeclineSwap rejects a request. Only the target member or an administrator
// may decline.
func (s *SwapService) DeclineSwap(ctx context.Context, principal Principal, id string) (SwapRequest, error) {
	return s.act(ctx, "DeclineSwap", principal, id, booking.ActionDecline)
}

// CancelSwap withdraws a request. Only the requester or an administrator may
// cancel.
func (s *SwapService) CancelSwap(ctx context.Context, principal Principal, id string) (SwapRequest, error) {
	return s.act(ctx, "CancelSwap", principal, id, booking.ActionCancel)
}

// RespondByToken accepts or declines the request identified by the
// single-use token from an email link. No session is required.
func (s *SwapService) RespondByToken(ctx context.Context, token string, action booking.SwapAction) (response SwapResponse, err error) {
	if s == nil {
		return SwapResponse{}, fmt.Errorf("SwapService is nil")
	}
	if s.swaps == nil {
		return SwapResponse{}, fmt.Errorf("swap repository not configured")
	}

	logger := s.loggerWith(ctx, "RespondByToken", "action", string(action))
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "swap response rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "swap response applied", "swap_id", response.Swap.ID, "status", string(response.Swap.Status))
	}()

	token = strings.TrimSpace(token)
	vErr := &ValidationError{}
	if token == "" {
		vErr.add("token", "token is required")
	}
	if action != booking.ActionAccept && action != booking.ActionDecline {
		vErr.add("action", "action must be accept or decline")
	}
	if vErr.HasErrors() {
		return SwapResponse{}, vErr
	}

	swap, err := s.swaps.GetSwapByToken(ctx, token)
	if err != nil {
		return SwapResponse{}, upstream(err)
	}

	swap, err = s.apply(ctx, logger, swap, action)
	if err != nil {
		return SwapResponse{}, err
	}

	message := "Swap declined."
	if action == booking.ActionAccept {
		message = "Swap accepted. The reservations have been exchanged."
	}
	return SwapResponse{Swap: swap, Action: action, Message: message}, nil
}

// GetSwap returns a request the caller takes part in. A pending request past
// its deadline is cancelled before it is returned.
func (s *SwapService) GetSwap(ctx context.Context, principal Principal, id string) (SwapRequest, error) {
	if s == nil {
		return SwapRequest{}, fmt.Errorf("SwapService is nil")
	}
	swap, err := s.swaps.GetSwap(ctx, id)
	if err != nil {
		return SwapRequest{}, upstream(err)
	}
	if !isParticipant(principal, swap) {
		return SwapRequest{}, ErrNotFound
	}
	return s.expireIfDue(ctx, swap)
}

// ListSwaps returns the requests the caller sent or received, newest first.
func (s *SwapService) ListSwaps(ctx context.Context, params ListSwapsParams) ([]SwapRequest, error) {
	if s == nil {
		return nil, fmt.Errorf("SwapService is nil")
	}
	if params.Principal.UserID == "" {
		return nil, ErrUnauthorized
	}
	if params.Status != "" && !params.Status.Valid() {
		return nil, fieldError("status", "unknown status")
	}

	// Expiry is applied after loading, so a pending filter must not hide
	// requests that are about to flip to cancelled.
	swaps, err := s.swaps.ListSwaps(ctx, SwapFilter{ParticipantID: params.Principal.UserID})
	if err != nil {
		return nil, upstream(err)
	}

	out := make([]SwapRequest, 0, len(swaps))
	for _, swap := range swaps {
		swap, err = s.expireIfDue(ctx, swap)
		if err != nil {
			return nil, err
		}
		if params.Status != "" && swap.Status != params.Status {
			continue
		}
		out = append(out, swap)
	}
	return out, nil
}

// SweepExpired cancels every pending request past its deadline and returns
// their IDs.
func (s *SwapService) SweepExpired(ctx context.Context) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("SwapService is nil")
	}
	logger := s.loggerWith(ctx, "SweepExpired")
	ids, err := s.swaps.CancelExpiredSwaps(ctx, s.now())
	if err != nil {
		err = upstream(err)
		logger.ErrorContext(ctx, "failed to sweep expired swap requests", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	if len(ids) > 0 {
		logger.InfoContext(ctx, "expired swap requests cancelled", "count", len(ids), "swap_ids", ids)
	}
	return ids, nil
}

func (s *SwapService) act(ctx context.Context, operation string, principal Principal, id string, action booking.SwapAction) (swap SwapRequest, err error) {
	if s == nil {
		return SwapRequest{}, fmt.Errorf("SwapService is nil")
	}
	if s.swaps == nil {
		return SwapRequest{}, fmt.Errorf("swap repository not configured")
	}

	logger := s.loggerWith(ctx, operation, "principal_id", principal.UserID, "swap_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "swap transition failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "swap transition applied", "status", string(swap.Status))
	}()

	if principal.UserID == "" {
		return SwapRequest{}, ErrUnauthorized
	}

	swap, err = s.swaps.GetSwap(ctx, id)
	if err != nil {
		return SwapRequest{}, upstream(err)
	}
	if !isParticipant(principal, swap) {
		return SwapRequest{}, ErrNotFound
	}

	allowed := principal.IsAdmin
	switch action {
	case booking.ActionAccept, booking.ActionDecline:
		allowed = allowed || swap.TargetUserID == principal.UserID
	case booking.ActionCancel:
		allowed = allowed || swap.RequesterID == principal.UserID
	}
	if !allowed {
		return SwapRequest{}, ErrUnauthorized
	}

	return s.apply(ctx, logger, swap, action)
}

// apply performs action on swap. The state machine decides the target
// status; the repository guards make the write conditional on the status
// still being pending so racing callers cannot both succeed.
func (s *SwapService) apply(ctx context.Context, logger *slog.Logger, swap SwapRequest, action booking.SwapAction) (SwapRequest, error) {
	now := s.now()
	next, err := booking.Transition(swap.Status, swap.ExpiresAt, now, action)
	switch {
	case errors.Is(err, booking.ErrSwapExpired):
		expired, expireErr := s.expireIfDue(ctx, swap)
		if expireErr != nil {
			return SwapRequest{}, expireErr
		}
		return expired, fmt.Errorf("%w: request expired at %s", ErrExpired, swap.ExpiresAt.UTC().Format(time.RFC3339))
	case err != nil:
		return swap, err
	}

	if next == booking.SwapAccepted {
		cancelled, err := s.swaps.AcceptSwap(ctx, AcceptSwapParams{
			SwapID:                 swap.ID,
			RequesterID:            swap.RequesterID,
			TargetUserID:           swap.TargetUserID,
			RequesterReservationID: swap.RequesterReservationID,
			TargetReservationID:    swap.TargetReservationID,
			ResolvedAt:             now,
		})
		if err != nil {
			return SwapRequest{}, s.explainStale(ctx, swap.ID, err, "one of the reservations changed owner")
		}
		if len(cancelled) > 0 {
			logger.InfoContext(ctx, "competing swap requests cancelled", "swap_ids", cancelled)
		}
	} else {
		if err := s.swaps.ResolveSwap(ctx, swap.ID, booking.SwapPending, next, now); err != nil {
			return SwapRequest{}, s.explainStale(ctx, swap.ID, err, "request changed while resolving")
		}
	}

	swap.Status = next
	swap.UpdatedAt = now
	resolvedAt := now
	swap.ResolvedAt = &resolvedAt

	switch next {
	case booking.SwapAccepted:
		s.notify(ctx, logger, SwapEventAccepted, swap)
	case booking.SwapDeclined:
		s.notify(ctx, logger, SwapEventDeclined, swap)
	case booking.SwapCancelled:
		s.notify(ctx, logger, SwapEventCancelled, swap)
	}
	return swap, nil
}

// explainStale turns a failed guarded write into the most precise error: an
// AlreadyResolvedError when another caller resolved the request first,
// otherwise a conflict.
func (s *SwapService) explainStale(ctx context.Context, id string, err error, reason string) error {
	if !errors.Is(err, ErrConflict) {
		return upstream(err)
	}
	current, getErr := s.swaps.GetSwap(ctx, id)
	if getErr == nil && current.Status.Terminal() {
		return &booking.AlreadyResolvedError{Status: current.Status}
	}
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}

// expireIfDue persists the cancelled status of a lapsed pending request.
func (s *SwapService) expireIfDue(ctx context.Context, swap SwapRequest) (SwapRequest, error) {
	now := s.now()
	if !booking.Expired(swap.Status, swap.ExpiresAt, now) {
		return swap, nil
	}
	err := s.swaps.ResolveSwap(ctx, swap.ID, booking.SwapPending, booking.SwapCancelled, now)
	switch {
	case err == nil:
		swap.Status = booking.SwapCancelled
		swap.UpdatedAt = now
		resolvedAt := now
		swap.ResolvedAt = &resolvedAt
		s.loggerWith(ctx, "expireIfDue", "swap_id", swap.ID).InfoContext(ctx, "swap request expired")
		return swap, nil
	case errors.Is(err, ErrConflict):
		return s.swaps.GetSwap(ctx, swap.ID)
	default:
		return SwapRequest{}, upstream(err)
	}
}

func (s *SwapService) notify(ctx context.Context, logger *slog.Logger, event SwapEvent, swap SwapRequest) {
	if s.notifier == nil {
		return
	}
	notification := SwapNotification{Event: event, Swap: swap}

	var err error
	if s.users != nil {
		if notification.Requester, err = s.users.GetUser(ctx, swap.RequesterID); err != nil {
			logger.WarnContext(ctx, "notification skipped", "reason", "requester lookup failed", "error", err)
			return
		}
		if notification.Target, err = s.users.GetUser(ctx, swap.TargetUserID); err != nil {
			logger.WarnContext(ctx, "notification skipped", "reason", "target lookup failed", "error", err)
			return
		}
	}
	if s.reservations != nil {
		if notification.RequesterReservation, err = s.reservations.GetReservation(ctx, swap.RequesterReservationID); err != nil {
			logger.WarnContext(ctx, "notification skipped", "reason", "reservation lookup failed", "error", err)
			return
		}
		if notification.TargetReservation, err = s.reservations.GetReservation(ctx, swap.TargetReservationID); err != nil {
			logger.WarnContext(ctx, "notification skipped", "reason", "reservation lookup failed", "error", err)
			return
		}
	}
	s.notifier.NotifySwap(ctx, notification)
}

func isParticipant(principal Principal, swap SwapRequest) bool {
	if principal.UserID == "" {
		return false
	}
	return principal.IsAdmin || swap.RequesterID == principal.UserID || swap.TargetUserID == principal.UserID
}
