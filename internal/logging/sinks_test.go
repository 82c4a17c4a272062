package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestStationHandlerWithoutSinksIsNoop(t *testing.T) {
	if _, ok := newStationHandler(NewStreamHub(4), nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every sink is nil")
	}
}

func TestStationHandlerRespectsPerSinkLevels(t *testing.T) {
	var console, file bytes.Buffer
	h := newStationHandler(nil,
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected handler enabled when any sink accepts the level")
	}

	logger := slog.New(h).With(slog.String(FieldComponent, "scan"))
	logger.Debug("tick skipped")
	logger.Warn("search failed")

	if strings.Contains(console.String(), "tick skipped") {
		t.Fatalf("warn-level sink received debug line: %q", console.String())
	}
	if !strings.Contains(console.String(), "search failed") {
		t.Fatalf("warn-level sink missed warning: %q", console.String())
	}
	for _, want := range []string{"tick skipped", "search failed", `"component":"scan"`} {
		if !strings.Contains(file.String(), want) {
			t.Fatalf("debug-level sink missing %q: %q", want, file.String())
		}
	}
}

func TestStationHandlerGroupsReachEverySink(t *testing.T) {
	var a, b bytes.Buffer
	h := newStationHandler(nil, slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil))
	slog.New(h).WithGroup("camera").Info("started", slog.String("device", "/dev/video0"))
	for _, out := range []string{a.String(), b.String()} {
		if !strings.Contains(out, `"camera":{"device":"/dev/video0"}`) {
			t.Fatalf("expected grouped attrs in %q", out)
		}
	}
}

func TestStationHandlerRedactsCredentials(t *testing.T) {
	var file bytes.Buffer
	hub := NewStreamHub(4)
	logger := slog.New(newStationHandler(hub, slog.NewJSONHandler(&file, nil))).
		With(slog.String("api_token", "s3cret-bearer"))
	logger.Info("registry configured",
		slog.String("Authorization", "Bearer abc.def"),
		slog.Group("request", slog.String("token", "jwt-value"), slog.String("path", "/search")),
	)

	for _, leaked := range []string{"s3cret-bearer", "abc.def", "jwt-value"} {
		if strings.Contains(file.String(), leaked) {
			t.Fatalf("credential %q reached the sink: %q", leaked, file.String())
		}
	}
	if !strings.Contains(file.String(), `"path":"/search"`) {
		t.Fatalf("expected non-credential attrs kept: %q", file.String())
	}

	events, _ := hub.Tail(1)
	if len(events) != 1 {
		t.Fatalf("expected one stream event, got %d", len(events))
	}
	if got := events[0].Fields["api_token"]; got != redactedValue {
		t.Fatalf("expected redacted logger attr in stream, got %q", got)
	}
	if got := events[0].Fields["Authorization"]; got != redactedValue {
		t.Fatalf("expected redacted call-site attr in stream, got %q", got)
	}
}

func TestJSONSinkLineFormat(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONSink(&buf, lvl, false))
	logger.Warn("camera lost", slog.String(FieldComponent, "camera"))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if decoded["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", decoded["level"])
	}
	raw, _ := decoded["time"].(string)
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t.Fatalf("expected RFC 3339 time, got %q: %v", raw, err)
	}
	if ts.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %q", raw)
	}
}
