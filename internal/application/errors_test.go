package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/familycabin/cabin/internal/booking"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected consistent message for populated error, got %q", got)
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	if base.HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	base.merge(fieldError("second", "another"))
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 || !base.HasErrors() {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrUnauthorized, "unauthorized"},
		{fmt.Errorf("wrap: %w", ErrNotFound), "not_found"},
		{ErrAlreadyExists, "already_exists"},
		{fmt.Errorf("%w: late", ErrExpired), "expired"},
		{ErrConflict, "conflict"},
		{&booking.ConflictError{}, "conflict"},
		{&booking.AlreadyResolvedError{Status: booking.SwapAccepted}, "conflict"},
		{fieldError("start_date", "required"), "validation"},
		{upstream(errors.New("disk full")), "upstream"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range tests {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestUpstreamKeepsApplicationSentinels(t *testing.T) {
	t.Parallel()

	if got := upstream(ErrNotFound); got != ErrNotFound {
		t.Fatalf("expected sentinel to pass through, got %v", got)
	}
	cause := errors.New("connection reset")
	wrapped := upstream(cause)
	if !errors.Is(wrapped, ErrUpstream) || !errors.Is(wrapped, cause) {
		t.Fatalf("expected wrapped upstream error, got %v", wrapped)
	}
}
