package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"petscan/internal/biometry"
	"petscan/internal/camera"
	"petscan/internal/frame"
	"petscan/internal/history"
	"petscan/internal/logging"
	"petscan/internal/notifications"
	"petscan/internal/scan"
	"petscan/internal/services"
)

// Scanner is the controller surface the API drives.
type Scanner interface {
	Snapshot() scan.Snapshot
	Subscribe() (<-chan scan.Snapshot, func())
	StartCamera(ctx context.Context, facing camera.Facing) (scan.Snapshot, error)
	SwitchCamera(ctx context.Context) (scan.Snapshot, error)
	StopCamera() scan.Snapshot
	SetScanning(on bool) (scan.Snapshot, error)
	CaptureNow() error
	SubmitPhoto(ctx context.Context, img frame.Image) (scan.Snapshot, error)
	SelectCandidate(ctx context.Context, petID int64) (scan.Snapshot, error)
	RetryProfile(ctx context.Context) (scan.Snapshot, error)
	Reset() scan.Snapshot
}

// HistoryReader lists recorded attempts.
type HistoryReader interface {
	List(ctx context.Context, filter history.Filter) ([]history.Entry, error)
}

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger

	scanner  Scanner
	history  HistoryReader
	notifier notifications.Service
	hub      *logging.StreamHub
	status   func(context.Context) Status
	contact  func(*biometry.Profile) string

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind, token string, st *Station, logger *slog.Logger) *apiServer {
	return &apiServer{
		bind:     strings.TrimSpace(bind),
		token:    strings.TrimSpace(token),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		scanner:  st.Controller,
		history:  st.Store,
		notifier: st.Notifier,
		hub:      st.hub,
		status:   st.Status,
		contact:  st.Resolver.ContactLink,
	}
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestContext)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.token))

		r.Get("/status", s.handleStatus)
		r.Get("/scan", s.handleSnapshot)
		r.Get("/events", s.handleEvents)
		r.Get("/preview", s.handlePreview)
		r.Get("/history", s.handleHistory)
		r.Get("/logs", s.handleLogs)

		r.Post("/camera/start", s.handleCameraStart)
		r.Post("/camera/switch", s.handleCameraSwitch)
		r.Post("/camera/stop", s.handleCameraStop)
		r.Post("/scanning", s.handleScanning)
		r.Post("/capture", s.handleCapture)
		r.Post("/photo", s.handlePhoto)
		r.Post("/select", s.handleSelect)
		r.Post("/profile/retry", s.handleRetryProfile)
		r.Post("/reset", s.handleReset)
		r.Post("/notifications/test", s.handleTestNotification)
	})
	return r
}

// serve listens on the configured address until ctx is cancelled. An empty
// bind disables the API.
func (s *apiServer) serve(ctx context.Context) error {
	if s == nil || s.bind == "" {
		<-ctx.Done()
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}

	// No write timeout: /api/events and followed /api/logs stream indefinitely.
	server := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(listener) }()
	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	}
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestContext copies the chi request id into the service context so log
// lines carry it as the correlation id.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(services.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
