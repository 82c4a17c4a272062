package main

import (
	"strings"
	"testing"
	"time"

	"petscan/internal/testsupport"
)

func TestRegisterStatusAndDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	token := ownerToken(t, time.Now().Add(time.Hour))
	photo := testsupport.WritePhoto(t, t.TempDir(), "nose.jpg", testsupport.JPEG(t, 200, 200))

	out, _, err := runCLI(t, []string{"register", "42", photo, "--token", token}, env.configPath)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	requireContains(t, out, "Nose-print of pet 42 registered")
	requireContains(t, out, "87/100")

	out, _, err = runCLI(t, []string{"register", "42", "--status", "--token", token}, env.configPath)
	if err != nil {
		t.Fatalf("register --status: %v", err)
	}
	requireContains(t, out, "Active:")
	requireContains(t, out, "2026-03-01")

	out, _, err = runCLI(t, []string{"register", "42", "--delete", "--token", token}, env.configPath)
	if err != nil {
		t.Fatalf("register --delete: %v", err)
	}
	requireContains(t, out, "deleted")

	if _, _, err := runCLI(t, []string{"register", "42", "--status", "--token", token}, env.configPath); err == nil {
		t.Fatal("expected status of a deleted enrollment to fail")
	}

	for _, header := range env.registry.authHeaders {
		if header != "Bearer "+token {
			t.Fatalf("unexpected auth header %q", header)
		}
	}
}

func TestRegisterRequiresValidToken(t *testing.T) {
	env := setupCLITestEnv(t)
	photo := testsupport.WritePhoto(t, t.TempDir(), "nose.jpg", testsupport.JPEG(t, 200, 200))

	_, _, err := runCLI(t, []string{"register", "42", photo}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "owner token required") {
		t.Fatalf("expected missing token error, got %v", err)
	}

	expired := ownerToken(t, time.Now().Add(-time.Hour))
	_, _, err = runCLI(t, []string{"register", "42", photo, "--token", expired}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expired token error, got %v", err)
	}
	if len(env.registry.authHeaders) != 0 {
		t.Fatalf("registry contacted with invalid credentials")
	}
}

func TestRegisterArgumentValidation(t *testing.T) {
	env := setupCLITestEnv(t)
	token := ownerToken(t, time.Now().Add(time.Hour))
	cases := [][]string{
		{"register", "abc", "--status", "--token", token},
		{"register", "42", "--token", token},
		{"register", "42", "--status", "--delete", "--token", token},
	}
	for _, args := range cases {
		if _, _, err := runCLI(t, args, env.configPath); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestQualityStatus(t *testing.T) {
	if qualityStatus(92) != statusOK || qualityStatus(60) != statusWarn || qualityStatus(10) != statusError {
		t.Fatal("unexpected quality grading")
	}
}
