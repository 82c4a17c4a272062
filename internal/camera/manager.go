package camera

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"petscan/internal/config"
	"petscan/internal/frame"
	"petscan/internal/logging"
)

// Request describes the stream a backend should open.
type Request struct {
	Device    string
	Facing    Facing
	Width     int
	Height    int
	Framerate int
}

// Stream is an open capture stream.
type Stream interface {
	frame.Surface
	// Done is closed when the stream ends, whether by Close or on its own.
	Done() <-chan struct{}
	// Err reports why the stream ended on its own; nil after Close.
	Err() error
	// Close stops the stream and waits for the device to be released.
	Close() error
}

// Opener opens capture streams. FFmpegOpener is the production backend.
type Opener interface {
	Open(ctx context.Context, req Request) (Stream, error)
}

// Session describes the active capture session.
type Session struct {
	ID        string
	Facing    Facing
	Device    string
	StartedAt time.Time
	Active    bool
}

// Event reports a session that ended without Stop.
type Event struct {
	SessionID string
	Device    string
	Err       error
}

// Manager holds the single capture session.
type Manager struct {
	opener    Opener
	devices   map[Facing]string
	width     int
	height    int
	framerate int
	logger    *slog.Logger
	events    chan Event

	// opMu serializes Start, Stop and loss handling; mu guards the fields
	// below for readers.
	opMu    sync.Mutex
	mu      sync.RWMutex
	session *Session
	stream  Stream
	stop    chan struct{}
}

// NewManager builds a manager for the configured devices.
func NewManager(cfg *config.Config, opener Opener, logger *slog.Logger) *Manager {
	m := &Manager{
		opener:  opener,
		devices: make(map[Facing]string, 2),
		logger:  logging.NewComponentLogger(logger, "camera"),
		events:  make(chan Event, 8),
	}
	if cfg != nil {
		m.devices[FacingFront] = strings.TrimSpace(cfg.Camera.FrontDevice)
		m.devices[FacingBack] = strings.TrimSpace(cfg.Camera.BackDevice)
		m.width = cfg.Camera.Width
		m.height = cfg.Camera.Height
		m.framerate = cfg.Camera.Framerate
	}
	return m
}

// Start opens the device mapped to facing. An active session is stopped first.
func (m *Manager) Start(ctx context.Context, facing Facing) (*Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.stopLocked("restart")

	device := m.devices[facing]
	if device == "" {
		return nil, unavailable(string(facing), "no device configured for this facing", nil)
	}

	stream, err := m.opener.Open(ctx, Request{
		Device:    device,
		Facing:    facing,
		Width:     m.width,
		Height:    m.height,
		Framerate: m.framerate,
	})
	if err != nil {
		logging.WarnWithContext(m.logger, "camera start failed", "camera_start_failed",
			logging.String("device", device),
			logging.String("facing", string(facing)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the camera connection and permissions"),
			logging.String(logging.FieldImpact, "live scanning unavailable"),
		)
		return nil, err
	}

	session := &Session{
		ID:        uuid.NewString(),
		Facing:    facing,
		Device:    device,
		StartedAt: time.Now().UTC(),
		Active:    true,
	}
	stop := make(chan struct{})

	m.mu.Lock()
	m.session = session
	m.stream = stream
	m.stop = stop
	m.mu.Unlock()

	go m.watch(session.ID, device, stream, stop)

	m.logger.Info("camera started",
		logging.String(logging.FieldEventType, "camera_started"),
		logging.String(logging.FieldSessionID, session.ID),
		logging.String("device", device),
		logging.String("facing", string(facing)),
	)
	cp := *session
	return &cp, nil
}

// Stop releases the device. It is idempotent.
func (m *Manager) Stop() {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.stopLocked("stop")
}

// StopSession stops the active session only if its ID matches.
func (m *Manager) StopSession(id string) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()
	if session == nil || session.ID != id {
		return
	}
	m.stopLocked("stale session")
}

// Switch stops the active session and starts the opposite facing. With no
// active session it starts the front camera.
func (m *Manager) Switch(ctx context.Context) (*Session, error) {
	next := FacingFront
	if current := m.Session(); current != nil {
		next = current.Facing.Opposite()
	}
	return m.Start(ctx, next)
}

// DeviceRemoved tears down the active session when device matches it.
func (m *Manager) DeviceRemoved(device string) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()
	if session == nil || session.Device != device {
		return
	}
	m.stopLocked("device removed")
	m.emit(Event{SessionID: session.ID, Device: device, Err: unavailable(device, "device removed", nil)})
}

// Active reports whether a session is live.
func (m *Manager) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil
}

// Session returns a copy of the active session, or nil.
func (m *Manager) Session() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	cp := *m.session
	return &cp
}

// Surface returns the live frame surface, or nil without a session.
func (m *Manager) Surface() frame.Surface {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stream == nil {
		return nil
	}
	return m.stream
}

// LiveTracks reports how many device streams are open (0 or 1).
func (m *Manager) LiveTracks() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stream == nil {
		return 0
	}
	return 1
}

// Events delivers sessions that ended without Stop. Consumers compare
// SessionID against the session they started to drop stale events.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Device returns the configured device node for facing.
func (m *Manager) Device(facing Facing) string {
	return m.devices[facing]
}

func (m *Manager) stopLocked(reason string) {
	m.mu.Lock()
	session, stream, stop := m.session, m.stream, m.stop
	m.session, m.stream, m.stop = nil, nil, nil
	m.mu.Unlock()

	if stream == nil {
		return
	}
	close(stop)
	if err := stream.Close(); err != nil {
		m.logger.Debug("camera close reported error", logging.Error(err))
	}
	m.logger.Info("camera stopped",
		logging.String(logging.FieldEventType, "camera_stopped"),
		logging.String(logging.FieldSessionID, session.ID),
		logging.String("device", session.Device),
		logging.String("reason", reason),
	)
}

func (m *Manager) watch(sessionID, device string, stream Stream, stop <-chan struct{}) {
	select {
	case <-stop:
		return
	case <-stream.Done():
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	current := m.session
	m.mu.RUnlock()
	if current == nil || current.ID != sessionID {
		return
	}

	err := stream.Err()
	if err == nil {
		err = unavailable(device, "capture ended", nil)
	}
	m.stopLocked("stream ended")
	logging.WarnWithContext(m.logger, "camera session lost", "camera_session_lost",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String("device", device),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "reconnect the camera and start it again"),
		logging.String(logging.FieldImpact, "live scanning stopped"),
	)
	m.emit(Event{SessionID: sessionID, Device: device, Err: err})
}

func (m *Manager) emit(evt Event) {
	select {
	case m.events <- evt:
	default:
		m.logger.Debug("camera event dropped; consumer not keeping up",
			logging.String(logging.FieldSessionID, evt.SessionID),
		)
	}
}
