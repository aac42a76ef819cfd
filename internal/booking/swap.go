package booking

import (
	"errors"
	"fmt"
	"time"
)

// SwapStatus is the lifecycle state of a swap request.
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapAccepted  SwapStatus = "accepted"
	SwapDeclined  SwapStatus = "declined"
	SwapCancelled SwapStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s SwapStatus) Valid() bool {
	switch s {
	case SwapPending, SwapAccepted, SwapDeclined, SwapCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible from s.
func (s SwapStatus) Terminal() bool {
	return s != SwapPending
}

// SwapAction is a transition requested by one of the participants.
type SwapAction string

const (
	ActionAccept  SwapAction = "accept"
	ActionDecline SwapAction = "decline"
	ActionCancel  SwapAction = "cancel"
)

// ParseSwapAction accepts the action names used by email links.
func ParseSwapAction(value string) (SwapAction, error) {
	switch SwapAction(value) {
	case ActionAccept, ActionDecline, ActionCancel:
		return SwapAction(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, value)
	}
}

var (
	// ErrSwapExpired is returned when a pending request is acted on after its deadline.
	ErrSwapExpired = errors.New("booking: swap request expired")
	// ErrUnknownAction is returned for actions outside accept, decline, and cancel.
	ErrUnknownAction = errors.New("booking: unknown swap action")
)

// AlreadyResolvedError reports an action on a request that has left pending.
type AlreadyResolvedError struct {
	Status SwapStatus
}

// Error implements the error interface.
func (e *AlreadyResolvedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("swap request already %s", e.Status)
}

// Expired reports whether a request in status with the given deadline has
// lapsed at now. Only pending requests expire.
func Expired(status SwapStatus, expiresAt, now time.Time) bool {
	return status == SwapPending && !expiresAt.IsZero() && !now.Before(expiresAt)
}

// Transition returns the status a request moves to when action is applied.
//
// Accept and decline on a lapsed request return ErrSwapExpired; the caller is
// expected to persist SwapCancelled. Cancel by the requester is honoured even
// after the deadline since it lands in the same terminal state.
func Transition(current SwapStatus, expiresAt, now time.Time, action SwapAction) (SwapStatus, error) {
	if current.Terminal() {
		return current, &AlreadyResolvedError{Status: current}
	}
	switch action {
	case ActionAccept, ActionDecline:
		if Expired(current, expiresAt, now) {
			return SwapCancelled, ErrSwapExpired
		}
		if action == ActionAccept {
			return SwapAccepted, nil
		}
		return SwapDeclined, nil
	case ActionCancel:
		return SwapCancelled, nil
	default:
		return current, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}
