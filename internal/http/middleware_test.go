package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/familycabin/cabin/internal/application"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubValidator struct {
	principal application.Principal
	err       error
	tokens    []string
}

func (s *stubValidator) ValidateSession(_ context.Context, token string) (application.Principal, error) {
	s.tokens = append(s.tokens, token)
	if s.err != nil {
		return application.Principal{}, s.err
	}
	return s.principal, nil
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		header     string
		cookie     string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "missing credentials", wantStatus: http.StatusUnauthorized, wantCode: "AUTH_REQUIRED"},
		{name: "malformed authorization header", header: "Token abc", wantStatus: http.StatusUnauthorized, wantCode: "AUTH_REQUIRED"},
		{name: "revoked session", cookie: "revoked", err: application.ErrSessionRevoked, wantStatus: http.StatusUnauthorized, wantCode: "AUTH_SESSION_EXPIRED"},
		{name: "expired session", header: "Bearer old", err: fmt.Errorf("wrap: %w", application.ErrSessionExpired), wantStatus: http.StatusUnauthorized, wantCode: "AUTH_SESSION_EXPIRED"},
		{name: "store failure", header: "Bearer abc", err: errors.New("disk on fire"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			validator := &stubValidator{err: tc.err}
			called := false
			handler := RequireSession(validator, discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/reservations", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "session_token", Value: tc.cookie})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if called {
				t.Fatalf("next handler must not run")
			}
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.ErrorCode != tc.wantCode {
				t.Fatalf("error_code = %q, want %q", body.ErrorCode, tc.wantCode)
			}
		})
	}
}

func TestRequireSessionStoresPrincipal(t *testing.T) {
	t.Parallel()

	validator := &stubValidator{principal: application.Principal{UserID: "u-1", IsAdmin: true}}
	var got application.Principal
	handler := RequireSession(validator, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/swaps", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "cookie-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.UserID != "u-1" || !got.IsAdmin {
		t.Fatalf("principal = %+v", got)
	}
	if len(validator.tokens) != 1 || validator.tokens[0] != "cookie-token" {
		t.Fatalf("validated tokens = %v", validator.tokens)
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	t.Parallel()

	var fromCtx *slog.Logger
	handler := RequestLogger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = LoggerFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id header")
	}
	if fromCtx == nil {
		t.Fatalf("expected request logger in context")
	}

	const given = "8d3e4a8e-7b0c-4d5e-9f1a-2b3c4d5e6f70"
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", given)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-Id") != given {
		t.Fatalf("request id = %q, want %q", rec.Header().Get("X-Request-Id"), given)
	}
}

func TestRateLimitRejectsWithSwapResponseBody(t *testing.T) {
	t.Parallel()

	limit, err := RateLimit(NewMemoryLimiterStore("test"), "2-M", false, discardLogger())
	if err != nil {
		t.Fatalf("RateLimit: %v", err)
	}
	handler := limit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/swap-response", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
		if i < 2 && last.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, last.Code)
		}
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	var body swapResponseBody
	if err := json.Unmarshal(last.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.ErrorCode != "RATE_LIMITED" {
		t.Fatalf("body = %+v", body)
	}

	// A different client keeps its own budget.
	req := httptest.NewRequest(http.MethodGet, "/swap-response", nil)
	req.RemoteAddr = "198.51.100.9:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client status = %d", rec.Code)
	}
}

func TestRateLimitRejectsBadRate(t *testing.T) {
	t.Parallel()

	if _, err := RateLimit(NewMemoryLimiterStore("bad"), "lots", false, nil); err == nil {
		t.Fatalf("expected parse error")
	}
}
