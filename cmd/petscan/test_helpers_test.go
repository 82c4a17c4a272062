package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pelletier/go-toml/v2"

	"petscan/internal/biometry"
	"petscan/internal/config"
	"petscan/internal/testsupport"
)

// fakeRegistry serves the registry endpoints the CLI calls.
type fakeRegistry struct {
	mu          sync.Mutex
	candidates  []biometry.Candidate
	profiles    map[int64]biometry.Profile
	enrollments map[int64]biometry.Enrollment
	searches    int
	authHeaders []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		profiles:    map[int64]biometry.Profile{},
		enrollments: map[int64]biometry.Enrollment{},
	}
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	if auth := r.Header.Get("Authorization"); auth != "" {
		f.authHeaders = append(f.authHeaders, auth)
	}
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && path == "/biometry/search":
		f.searches++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"found":   len(f.candidates) > 0,
			"results": f.candidates,
			"message": "",
		})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/public/pet/") && strings.HasSuffix(path, "/identified"):
		id, _ := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(path, "/public/pet/"), "/identified"), 10, 64)
		profile, ok := f.profiles[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Pet não encontrado"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(profile)
	case r.Method == http.MethodPost && path == "/biometry/register":
		var req struct {
			PetID int64 `json:"pet_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		score := 87.0
		f.enrollments[req.PetID] = biometry.Enrollment{ID: 1, PetID: req.PetID, QualityScore: &score, IsActive: true}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 1, "pet_id": req.PetID, "quality_score": score, "is_active": true, "created_at": "2026-03-01T10:00:00"})
	case strings.HasPrefix(path, "/biometry/"):
		id, _ := strconv.ParseInt(strings.TrimPrefix(path, "/biometry/"), 10, 64)
		enrollment, ok := f.enrollments[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Biometria não encontrada"}`))
			return
		}
		if r.Method == http.MethodDelete {
			delete(f.enrollments, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": enrollment.ID, "pet_id": enrollment.PetID, "quality_score": enrollment.QualityScore, "is_active": enrollment.IsActive, "created_at": "2026-03-01T10:00:00"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	registry   *fakeRegistry
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("PETSCAN_API_URL", "")
	t.Setenv("PETSCAN_API_TOKEN", "")
	t.Setenv("PETSCAN_NTFY_TOPIC", "")

	registry := newFakeRegistry()
	srv := httptest.NewServer(registry)
	t.Cleanup(srv.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithAPIBaseURL(srv.URL+"/api/v1"))
	cfg.Profile.CacheTTLSeconds = 0
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, registry: registry}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, configPath, "")
}

func runCLIWithInput(t *testing.T, args []string, configPath, input string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(input))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func ownerToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "owner@example.com",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n%s", needle, haystack)
	}
}

func requireNotContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		t.Fatalf("expected output not to contain %q\n%s", needle, haystack)
	}
}
