package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"petscan/internal/biometry"
	"petscan/internal/preflight"
	"petscan/internal/scan"
	"petscan/internal/station"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Station", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Station:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Station", statusOK, "running", true)
	if !strings.HasPrefix(got, "\x1b[32m") {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, "\x1b[0m") {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}

func TestStatusLinesWithoutStation(t *testing.T) {
	report := statusReport{Checks: []preflight.Result{
		{Name: "ffmpeg", Passed: true, Detail: "/usr/bin/ffmpeg"},
		{Name: "Front camera", Passed: false, Detail: "not found"},
		{Name: "Owner token", Passed: false, Detail: "expired", Optional: true},
	}}
	text := strings.Join(statusLines(report, false), "\n")
	requireContains(t, text, "[OK] /usr/bin/ffmpeg")
	requireContains(t, text, "[ERROR] not found")
	requireContains(t, text, "[WARN] expired")
	requireContains(t, text, "[INFO] not running")
}

func TestStatusLinesWithStation(t *testing.T) {
	report := statusReport{
		StationRunning: true,
		Station: &station.Status{
			Running: true,
			PID:     4242,
			Scan: scan.Snapshot{
				Mode:         scan.ModeLiveCamera,
				Facing:       "back",
				CameraActive: true,
				Scanning:     true,
				Attempts:     3,
				Status:       scan.Status{Text: "No match yet", Kind: scan.StatusInfo},
			},
			History: map[string]int{"matched": 2, "empty": 5},
		},
	}
	text := strings.Join(statusLines(report, false), "\n")
	requireContains(t, text, "running (pid 4242)")
	requireContains(t, text, "back camera scanning, 3 attempt(s)")
	requireContains(t, text, "empty=5 matched=2")

	report = statusReport{StationRunning: true, Error: "station API uses an ephemeral port"}
	text = strings.Join(statusLines(report, false), "\n")
	requireContains(t, text, "[WARN] running; station API uses an ephemeral port")
}

func TestStationURL(t *testing.T) {
	cases := []struct {
		bind    string
		want    string
		wantErr bool
	}{
		{bind: "127.0.0.1:8787", want: "http://127.0.0.1:8787"},
		{bind: ":8787", want: "http://127.0.0.1:8787"},
		{bind: "0.0.0.0:9000", want: "http://127.0.0.1:9000"},
		{bind: "127.0.0.1:0", wantErr: true},
		{bind: "", wantErr: true},
		{bind: "nonsense", wantErr: true},
	}
	for _, tc := range cases {
		got, err := stationURL(tc.bind)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("stationURL(%q) expected error", tc.bind)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("stationURL(%q) = %q, %v; want %q", tc.bind, got, err, tc.want)
		}
	}
}

func TestCandidateTable(t *testing.T) {
	table := candidateTable([]biometry.Candidate{
		{PetID: 7, Name: "Rex", Species: "dog", Breed: "golden retriever", Similarity: 0.79, HasContactPermission: true},
		{PetID: 9, Species: "cat", Similarity: 0.76},
	})
	requireContains(t, table, "Golden Retriever")
	requireContains(t, table, "79%")
	requireContains(t, table, "Gato")
	requireContains(t, table, "yes")
}

func TestProfileLinesRedactedOwner(t *testing.T) {
	lines := profileLines(&biometry.Profile{ID: 3, Name: "Mia", Species: "cat"}, 0, "", false)
	text := strings.Join(lines, "\n")
	requireContains(t, text, "🐱 Mia")
	requireNotContains(t, text, "Owner:")
	requireNotContains(t, text, "Contact:")
	requireNotContains(t, text, "Similarity:")
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Fatalf("truncate = %q", got)
	}
}
