package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"petscan/internal/logging"
	"petscan/internal/station"
	"petscan/internal/testsupport"
)

const sampleLogFile = `{"time":"2026-03-01T10:00:00Z","level":"DEBUG","msg":"tick skipped","component":"scan"}
{"time":"2026-03-01T10:00:01Z","level":"INFO","msg":"camera started","component":"camera","device":"/dev/video0"}
{"time":"2026-03-01T10:00:02Z","level":"WARN","msg":"search failed","component":"scan","event_type":"search_failed"}
not json at all
`

func writeLogFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create log dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(sampleLogFile), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}
}

func TestLogsCommandReadsFileWithoutStation(t *testing.T) {
	env := setupCLITestEnv(t)
	writeLogFile(t, env.cfg.LogPath())

	out, _, err := runCLI(t, []string{"logs", "-n", "10"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "INFO  [camera] camera started device=/dev/video0")
	requireContains(t, out, "WARN  [scan] search failed event_type=search_failed")
	requireContains(t, out, "not json at all")
}

func TestLogsCommandFiltersFileLines(t *testing.T) {
	env := setupCLITestEnv(t)
	writeLogFile(t, env.cfg.LogPath())

	out, _, err := runCLI(t, []string{"logs", "--component", "scan", "--level", "info"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "search failed")
	requireNotContains(t, out, "tick skipped")
	requireNotContains(t, out, "camera started")
}

func TestLogsCommandEmptyFile(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries available")
}

func TestStreamStationLogsFromRunningStation(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIBaseURL("http://127.0.0.1:1/api/v1"))
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	cfg.Paths.APIBind = listener.Addr().String()
	_ = listener.Close()

	hub := logging.NewStreamHub(32)
	hub.Publish(logging.LogEvent{Level: "info", Message: "station ready", Component: "station"})
	hub.Publish(logging.LogEvent{Level: "warn", Message: "camera lost", Component: "camera"})

	st, err := station.New(cfg, logging.NewNop(), hub)
	if err != nil {
		t.Fatalf("new station: %v", err)
	}
	defer st.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- st.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	deadline := time.Now().Add(10 * time.Second)
	for st.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	var out bytes.Buffer
	if err := streamStationLogs(context.Background(), cfg, logsOptions{lines: 10, level: "warn"}, &out); err != nil {
		t.Fatalf("stream logs: %v", err)
	}
	text := out.String()
	requireContains(t, text, "WARN  [camera] camera lost")
	if strings.Contains(text, "station ready") {
		t.Fatalf("info event should be filtered:\n%s", text)
	}
}
