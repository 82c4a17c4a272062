package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"petscan/internal/camera"
	"petscan/internal/frame"
	"petscan/internal/history"
	"petscan/internal/logging"
	"petscan/internal/logs"
	"petscan/internal/scan"
	"petscan/internal/services"
)

// ScanView is a controller snapshot plus the owner contact link.
type ScanView struct {
	scan.Snapshot
	ContactLink string `json:"contact_link,omitempty"`
}

// ErrorResponse carries a failed action's message and the state after it.
type ErrorResponse struct {
	Error string    `json:"error"`
	Scan  *ScanView `json:"scan,omitempty"`
}

type cameraRequest struct {
	Facing string `json:"facing"`
}

type scanningRequest struct {
	Enabled bool `json:"enabled"`
}

type selectRequest struct {
	PetID int64 `json:"pet_id"`
}

type historyResponse struct {
	Entries []history.Entry `json:"entries"`
}

type logsResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

func (s *apiServer) view(snap scan.Snapshot) ScanView {
	v := ScanView{Snapshot: snap}
	if s.contact != nil {
		v.ContactLink = s.contact(snap.Profile)
	}
	return v
}

func (s *apiServer) respond(w http.ResponseWriter, snap scan.Snapshot, err error) {
	if err != nil {
		v := s.view(snap)
		s.writeJSON(w, httpStatus(err), ErrorResponse{Error: err.Error(), Scan: &v})
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(snap))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.writeJSON(w, http.StatusOK, Status{Running: true, Scan: s.scanner.Snapshot()})
		return
	}
	s.writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *apiServer) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.view(s.scanner.Snapshot()))
}

func (s *apiServer) handlePreview(w http.ResponseWriter, _ *http.Request) {
	snap := s.scanner.Snapshot()
	if snap.Preview.Empty() {
		s.writeError(w, http.StatusNotFound, "no preview")
		return
	}
	w.Header().Set("Content-Type", snap.Preview.MIME)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.Preview.Data)
}

func (s *apiServer) handleCameraStart(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	facing := s.scanner.Snapshot().Facing
	if strings.TrimSpace(req.Facing) != "" {
		parsed, err := camera.ParseFacing(req.Facing)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		facing = parsed
	}
	snap, err := s.scanner.StartCamera(r.Context(), facing)
	s.respond(w, snap, err)
}

func (s *apiServer) handleCameraSwitch(w http.ResponseWriter, r *http.Request) {
	snap, err := s.scanner.SwitchCamera(r.Context())
	s.respond(w, snap, err)
}

func (s *apiServer) handleCameraStop(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, s.scanner.StopCamera(), nil)
}

func (s *apiServer) handleScanning(w http.ResponseWriter, r *http.Request) {
	var req scanningRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := s.scanner.SetScanning(req.Enabled)
	s.respond(w, snap, err)
}

func (s *apiServer) handleCapture(w http.ResponseWriter, _ *http.Request) {
	err := s.scanner.CaptureNow()
	snap := s.scanner.Snapshot()
	if err != nil {
		s.respond(w, snap, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.view(snap))
}

func (s *apiServer) handlePhoto(w http.ResponseWriter, r *http.Request) {
	data, err := readPhoto(w, r)
	if err != nil {
		s.writeError(w, httpStatus(err), err.Error())
		return
	}
	img, err := frame.DecodePhoto(data)
	if err != nil {
		s.writeError(w, httpStatus(err), err.Error())
		return
	}
	snap, err := s.scanner.SubmitPhoto(r.Context(), img)
	s.respond(w, snap, err)
}

func (s *apiServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PetID <= 0 {
		s.writeError(w, http.StatusBadRequest, "pet_id is required")
		return
	}
	snap, err := s.scanner.SelectCandidate(r.Context(), req.PetID)
	s.respond(w, snap, err)
}

func (s *apiServer) handleRetryProfile(w http.ResponseWriter, r *http.Request) {
	snap, err := s.scanner.RetryProfile(r.Context())
	s.respond(w, snap, err)
}

func (s *apiServer) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, s.scanner.Reset(), nil)
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusOK, historyResponse{})
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.history.List(r.Context(), history.Filter{
		Limit:     limit,
		SessionID: strings.TrimSpace(query.Get("session")),
		Outcome:   strings.TrimSpace(query.Get("outcome")),
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, historyResponse{Entries: entries})
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.writeJSON(w, http.StatusOK, logsResponse{})
		return
	}
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	component := strings.TrimSpace(query.Get("component"))
	level := strings.TrimSpace(query.Get("level"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	if since == 0 && !follow {
		events, next = s.hub.Tail(limit)
	} else {
		var err error
		events, next, err = s.hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	filtered := make([]logging.LogEvent, 0, len(events))
	for _, evt := range events {
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		if level != "" && !logs.LevelAtLeast(evt.Level, level) {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, logsResponse{Events: filtered, Next: next})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if s.notifier == nil {
		s.writeError(w, http.StatusServiceUnavailable, "notifications unavailable")
		return
	}
	if err := s.notifier.TestNotification(r.Context()); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "test notification sent"})
}

// handleEvents streams a snapshot after every controller state change as
// server-sent events.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, cancel := s.scanner.Subscribe()
	defer cancel()
	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(s.view(snap))
			if err != nil {
				s.logger.Error("failed to encode snapshot", logging.Error(err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// readPhoto accepts a raw image body or a multipart form with a "photo" field.
func readPhoto(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, frame.MaxPhotoBytes+(1<<20))
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("photo")
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "station", "photo", "missing photo field", err)
		}
		defer file.Close()
		return readAllLimited(file)
	}
	return readAllLimited(r.Body)
}

func readAllLimited(src io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(src, frame.MaxPhotoBytes+1))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "station", "photo", "read upload", err)
	}
	return data, nil
}

func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// httpStatus maps controller and service errors to response codes.
func httpStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, scan.ErrInvalidTransition), errors.Is(err, scan.ErrAttemptPending), errors.Is(err, scan.ErrStale):
		return http.StatusConflict
	case errors.Is(err, scan.ErrNoCandidate), errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scan.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrDevice):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrTransport), errors.Is(err, services.ErrConfiguration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
