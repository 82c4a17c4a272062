package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, dir, name string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), mode); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeStub(t, t.TempDir(), "present", 0o755)
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("expected only the required missing binary, got %#v", missing)
	}
}

func TestCheckFFmpegUsesConfiguredBinary(t *testing.T) {
	path := writeStub(t, t.TempDir(), "ffmpeg-custom", 0o755)
	status := CheckFFmpeg(path)
	if !status.Available || status.Command != path {
		t.Fatalf("expected configured ffmpeg available, got %#v", status)
	}
}

func TestCheckFFmpegMissing(t *testing.T) {
	status := CheckFFmpeg(filepath.Join(t.TempDir(), "ffmpeg"))
	if status.Available {
		t.Fatalf("expected missing ffmpeg, got %#v", status)
	}
}

func TestCheckFFmpegFallsBackToPath(t *testing.T) {
	dir := t.TempDir()
	writeStub(t, dir, "ffmpeg", 0o755)
	t.Setenv("PATH", dir)

	if got := ResolveFFmpegPath(""); got != "ffmpeg" {
		t.Fatalf("expected ffmpeg fallback, got %q", got)
	}
	status := CheckFFmpeg("")
	if !status.Available || status.Command != filepath.Join(dir, "ffmpeg") {
		t.Fatalf("expected PATH ffmpeg, got %#v", status)
	}
}

func TestResolveFFprobePath(t *testing.T) {
	cases := map[string]string{
		"":                       "ffprobe",
		"/opt/ff/bin/ffmpeg":     "/opt/ff/bin/ffprobe",
		"/usr/local/bin/ffmpeg7": "/usr/local/bin/ffprobe7",
		"/usr/bin/avconv":        "ffprobe",
	}
	for in, want := range cases {
		if got := ResolveFFprobePath(in); got != want {
			t.Fatalf("ResolveFFprobePath(%q) = %q, want %q", in, got, want)
		}
	}
}
