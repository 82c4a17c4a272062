package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"petscan/internal/biometry"
	"petscan/internal/config"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int, hits *atomic.Int32, captured *capturedRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if hits != nil {
			hits.Add(1)
		}
		if captured != nil {
			captured.title = r.Header.Get("Title")
			captured.tags = r.Header.Get("Tags")
			captured.priority = r.Header.Get("Priority")
			body, _ := io.ReadAll(r.Body)
			captured.body = string(body)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestService(endpoint string, lostPet bool) *ntfyService {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = endpoint
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.LostPet = lostPet
	svc := NewService(&cfg).(*ntfyService)
	svc.retryBase = time.Millisecond
	return svc
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "  "
	svc := NewService(&cfg)
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.NotifyLostPetIdentified(context.Background(), &biometry.Profile{ID: 1, IsLost: true}, 0.9); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if NewService(nil) == nil {
		t.Fatal("expected noop service for nil config")
	}
}

func TestNtfyServiceFormatsLostPetAlert(t *testing.T) {
	var captured capturedRequest
	server := newCaptureServer(t, http.StatusOK, nil, &captured)
	svc := newTestService(server.URL, true)

	profile := &biometry.Profile{
		ID:        7,
		Name:      "Rex",
		Species:   "dog",
		Breed:     "labrador",
		IsLost:    true,
		OwnerName: "Ana",
	}
	if err := svc.NotifyLostPetIdentified(context.Background(), profile, 0.91); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if captured.title != "PetScan - Lost Pet Found" {
		t.Fatalf("unexpected title %q", captured.title)
	}
	want := "🐾 Lost pet identified: Rex (Cão, Labrador)\nSimilarity: 91%\nOwner: Ana"
	if captured.body != want {
		t.Fatalf("expected message %q, got %q", want, captured.body)
	}
	if captured.tags != "petscan,lost,found" {
		t.Fatalf("unexpected tags %q", captured.tags)
	}
	if captured.priority != "urgent" {
		t.Fatalf("unexpected priority %q", captured.priority)
	}
}

func TestNtfyServiceSkipsPetsThatAreNotLost(t *testing.T) {
	var hits atomic.Int32
	server := newCaptureServer(t, http.StatusOK, &hits, nil)

	enabled := newTestService(server.URL, true)
	if err := enabled.NotifyLostPetIdentified(context.Background(), &biometry.Profile{ID: 1, Name: "Mia"}, 0.9); err != nil {
		t.Fatalf("notify: %v", err)
	}
	disabled := newTestService(server.URL, false)
	if err := disabled.NotifyLostPetIdentified(context.Background(), &biometry.Profile{ID: 1, IsLost: true}, 0.9); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no requests, got %d", hits.Load())
	}
}

func TestNtfyServiceFormatsError(t *testing.T) {
	var captured capturedRequest
	server := newCaptureServer(t, http.StatusOK, nil, &captured)
	svc := newTestService(server.URL, true)

	if err := svc.NotifyError(context.Background(), errors.New("device busy "), "camera"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if captured.body != "❌ Error with camera: device busy" {
		t.Fatalf("unexpected message %q", captured.body)
	}
	if captured.priority != "high" {
		t.Fatalf("unexpected priority %q", captured.priority)
	}
}

func TestNtfyServiceRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := newCaptureServer(t, http.StatusBadGateway, &hits, nil)
	svc := newTestService(server.URL, true)

	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := hits.Load(); got != maxSendAttempts {
		t.Fatalf("expected %d attempts, got %d", maxSendAttempts, got)
	}
}

func TestNtfyServiceDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := newCaptureServer(t, http.StatusForbidden, &hits, nil)
	svc := newTestService(server.URL, true)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403")
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}
