package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONAtLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Stdout: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "swap_id", "s-1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %q", buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record["msg"] != "shown" || record["swap_id"] != "s-1" {
		t.Fatalf("record = %v", record)
	}
}

func TestNewCopiesToRotatedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cabin.log")
	var buf bytes.Buffer
	logger, closer, err := New(Options{File: path, Stdout: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("reservation created")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "reservation created") || !strings.Contains(buf.String(), "reservation created") {
		t.Fatalf("file = %q stdout = %q", data, buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	if lvl, err := ParseLevel("DEBUG"); err != nil || lvl != slog.LevelDebug {
		t.Fatalf("debug: %v %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	logger := slog.Default()
	ctx := ContextWithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("logger not carried")
	}
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected nil logger")
	}
}

func TestScopedPrefersRequestLogger(t *testing.T) {
	t.Parallel()

	var fallbackBuf, requestBuf bytes.Buffer
	fallback := slog.New(slog.NewJSONHandler(&fallbackBuf, nil))
	request := slog.New(slog.NewJSONHandler(&requestBuf, nil)).With("request_id", "req-7")

	ctx := ContextWithLogger(context.Background(), request)
	Scoped(ctx, fallback, "service", "SwapService", "AcceptSwap", "swap_id", "s-1").Info("accepted")
	Scoped(context.Background(), fallback, "handler", "HealthHandler", "").Info("ok")

	var record map[string]any
	if err := json.Unmarshal(requestBuf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for key, want := range map[string]string{"request_id": "req-7", "service": "SwapService", "operation": "AcceptSwap", "swap_id": "s-1"} {
		if record[key] != want {
			t.Fatalf("%s = %v, want %s", key, record[key], want)
		}
	}
	if !strings.Contains(fallbackBuf.String(), `"handler":"HealthHandler"`) || strings.Contains(fallbackBuf.String(), "operation") {
		t.Fatalf("fallback record = %q", fallbackBuf.String())
	}
}
