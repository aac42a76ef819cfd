package sqlite

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/familycabin/cabin/internal/persistence"
)

func TestConfigDSN(t *testing.T) {
	dsn := Config{Path: "/tmp/cabin.db", BusyTimeout: 2 * time.Second, JournalMode: "WAL"}.DSN()
	for _, want := range []string{"foreign_keys%281%29", "busy_timeout%282000%29", "journal_mode%28WAL%29", "_txlock=immediate"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("DSN %q missing %q", dsn, want)
		}
	}
	if !strings.HasPrefix(dsn, "/tmp/cabin.db?") {
		t.Fatalf("unexpected DSN prefix: %q", dsn)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"constraint failed: UNIQUE constraint failed: users.email (2067)", persistence.ErrDuplicate},
		{"constraint failed: FOREIGN KEY constraint failed (787)", persistence.ErrForeignKeyViolation},
		{"constraint failed: CHECK constraint failed: start_date <= end_date (275)", persistence.ErrConstraintViolation},
	}
	for _, tc := range tests {
		original := fmt.Errorf("%s", tc.msg)
		got := mapError(original)
		if !errors.Is(got, tc.want) {
			t.Fatalf("mapError(%q) = %v, want %v", tc.msg, got, tc.want)
		}
		if !errors.Is(got, original) {
			t.Fatalf("mapError(%q) dropped the driver error", tc.msg)
		}
	}

	plain := errors.New("disk I/O error")
	if got := mapError(plain); got != plain {
		t.Fatalf("unexpected mapping for unrelated error: %v", got)
	}
}

func TestIsRetryableError(t *testing.T) {
	if !isRetryableError(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Fatal("busy errors should be retryable")
	}
	if isRetryableError(persistence.ErrNotFound) {
		t.Fatal("not found should not be retryable")
	}
}
