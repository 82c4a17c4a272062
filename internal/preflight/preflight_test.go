package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"petscan/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail for missing dir, got %#v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckDirectoryAccess("test", f).Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckRegistryUsesRootHealthEndpoint(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	}))
	defer srv.Close()

	result := CheckRegistry(context.Background(), srv.URL+"/api/v1")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if gotPath != "/health" {
		t.Fatalf("expected /health, got %q", gotPath)
	}
	if result.Detail != "Reachable (v1.0.0)" {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckRegistryFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if result := CheckRegistry(context.Background(), srv.URL); result.Passed || !strings.Contains(result.Detail, "503") {
		t.Fatalf("expected 503 failure, got %#v", result)
	}
	if result := CheckRegistry(context.Background(), ""); result.Passed {
		t.Fatal("expected failure for missing url")
	}
	if result := CheckRegistry(context.Background(), "not a url"); result.Passed {
		t.Fatal("expected failure for invalid url")
	}
}

func TestCheckDevice(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDeviceNodes())
	if result := CheckDevice("Back camera", cfg.Camera.BackDevice); !result.Passed {
		t.Fatalf("expected device check to pass, got %s", result.Detail)
	}
	missing := CheckDevice("Front camera", filepath.Join(t.TempDir(), "video9"))
	if missing.Passed {
		t.Fatal("expected failure for missing device")
	}
	if CheckDevice("Front camera", "").Detail != "not configured" {
		t.Fatal("expected not configured detail")
	}
}

func TestCheckCredentials(t *testing.T) {
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "owner@example.com",
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	result := CheckCredentials(token, now)
	if !result.Passed || result.Detail != "valid for owner@example.com" {
		t.Fatalf("unexpected result %#v", result)
	}
	if expired := CheckCredentials(token, now.Add(2*time.Hour)); expired.Passed || !expired.Optional {
		t.Fatalf("expected optional failure for expired token, got %#v", expired)
	}
}

func TestRunAllReportsEveryCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithDeviceNodes(),
		testsupport.WithStubbedBinaries(),
		testsupport.WithAPIBaseURL(srv.URL),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %#v", failed)
	}

	if err := os.Remove(cfg.Camera.FrontDevice); err != nil {
		t.Fatal(err)
	}
	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "Front camera" {
		t.Fatalf("expected front camera failure, got %#v", failed)
	}
}

func TestRunProbesUsesFFprobeBesideFFmpeg(t *testing.T) {
	binDir := t.TempDir()
	stub := "#!/bin/sh\necho '{\"streams\":[{\"codec_type\":\"video\",\"codec_name\":\"mjpeg\",\"width\":640,\"height\":480,\"r_frame_rate\":\"30/1\"}]}'\n"
	if err := os.WriteFile(filepath.Join(binDir, "ffprobe"), []byte(stub), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	cfg := testsupport.NewConfig(t, testsupport.WithDeviceNodes())
	cfg.Camera.FFmpegBinary = filepath.Join(binDir, "ffmpeg")
	cfg.Camera.FrontDevice = ""

	results := RunProbes(context.Background(), cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	front, back := results[0], results[1]
	if front.Passed || !front.Optional || front.Detail != "not configured" {
		t.Fatalf("unexpected front result %#v", front)
	}
	if !back.Passed || back.Name != "Back camera format" || back.Detail != "640x480 mjpeg @ 30 fps" {
		t.Fatalf("unexpected back result %#v", back)
	}
	if len(Failed(results)) != 0 {
		t.Fatal("probe results must never fail status")
	}
}
