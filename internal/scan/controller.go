package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"petscan/internal/biometry"
	"petscan/internal/camera"
	"petscan/internal/config"
	"petscan/internal/frame"
	"petscan/internal/logging"
	"petscan/internal/services"
	"petscan/internal/textutil"
)

// Camera is the capture device contract the controller drives.
type Camera interface {
	Start(ctx context.Context, facing camera.Facing) (*camera.Session, error)
	StopSession(id string)
	Surface() frame.Surface
	Events() <-chan camera.Event
}

// Sampler turns the live surface into an encoded still.
type Sampler interface {
	Capture(surface frame.Surface) (frame.Image, error)
}

// Resolver loads the identification profile of an accepted candidate.
type Resolver interface {
	Resolve(ctx context.Context, candidate biometry.Candidate) (*biometry.Profile, error)
}

// Recorder persists resolved attempts.
type Recorder interface {
	Record(ctx context.Context, attempt Attempt) error
}

// Settings are the scan thresholds and timing.
type Settings struct {
	Interval   time.Duration
	Threshold  float64
	AutoAccept float64
	MaxResults int
	Facing     camera.Facing
}

// SettingsFromConfig reads the [scan] and [camera] sections.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := Settings{
		Interval:   2 * time.Second,
		Threshold:  0.75,
		AutoAccept: 0.80,
		MaxResults: 5,
		Facing:     camera.FacingBack,
	}
	if cfg == nil {
		return s
	}
	s.Interval = cfg.ScanInterval()
	s.Threshold = cfg.Scan.SimilarityThreshold
	s.AutoAccept = cfg.Scan.AutoAcceptThreshold
	s.MaxResults = cfg.Scan.MaxResults
	if facing, err := camera.ParseFacing(cfg.Camera.DefaultFacing); err == nil {
		s.Facing = facing
	}
	return s
}

// Deps are the controller collaborators. Recorder, NewTicker and Now are
// optional.
type Deps struct {
	Camera    Camera
	Sampler   Sampler
	Searcher  biometry.Searcher
	Resolver  Resolver
	Recorder  Recorder
	Logger    *slog.Logger
	NewTicker TickerFactory
	Now       func() time.Time
}

// Snapshot is an immutable copy of controller state.
type Snapshot struct {
	Mode         Mode                 `json:"mode"`
	Facing       camera.Facing        `json:"facing"`
	CameraActive bool                 `json:"camera_active"`
	Starting     bool                 `json:"starting"`
	SessionID    string               `json:"session_id,omitempty"`
	Scanning     bool                 `json:"scanning"`
	Pending      bool                 `json:"pending"`
	Resolving    bool                 `json:"resolving"`
	Status       Status               `json:"status"`
	Candidates   []biometry.Candidate `json:"candidates,omitempty"`
	Accepted     *biometry.Candidate  `json:"accepted,omitempty"`
	Profile      *biometry.Profile    `json:"profile,omitempty"`
	Similarity   float64              `json:"similarity,omitempty"`
	Preview      frame.Image          `json:"-"`
	HasPreview   bool                 `json:"has_preview"`
	Attempts     int                  `json:"attempts"`
	ProfileError bool                 `json:"profile_error"`
	Generation   uint64               `json:"generation"`
}

// Controller is the scan loop state machine.
type Controller struct {
	settings  Settings
	cam       Camera
	sampler   Sampler
	searcher  biometry.Searcher
	resolver  Resolver
	recorder  Recorder
	logger    *slog.Logger
	newTicker TickerFactory
	now       func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.Mutex
	closed       bool
	mode         Mode
	facing       camera.Facing
	cameraActive bool
	starting     bool
	sessionID    string
	scanning     bool
	tickStop     chan struct{}
	pending      bool
	resolving    bool
	generation   uint64
	status       Status
	candidates   []biometry.Candidate
	candidateImg frame.Image
	accepted     *biometry.Candidate
	profile      *biometry.Profile
	similarity   float64
	preview      frame.Image
	attempts     int
	profileError bool

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

// NewController builds a controller in the selecting mode and starts
// consuming camera loss events.
func NewController(settings Settings, deps Deps) *Controller {
	if settings.Facing == "" {
		settings.Facing = camera.FacingBack
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		settings:  settings,
		cam:       deps.Camera,
		sampler:   deps.Sampler,
		searcher:  deps.Searcher,
		resolver:  deps.Resolver,
		recorder:  deps.Recorder,
		logger:    logging.NewComponentLogger(deps.Logger, "scan"),
		newTicker: deps.NewTicker,
		now:       deps.Now,
		baseCtx:   ctx,
		cancel:    cancel,
		mode:      ModeSelecting,
		facing:    settings.Facing,
		subs:      make(map[int]chan Snapshot),
	}
	if c.newTicker == nil {
		c.newTicker = NewTimeTicker
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.status = Status{Text: "Choose live camera or a photo", Kind: StatusInfo, At: c.now()}
	if c.cam != nil {
		c.wg.Add(1)
		go c.watchCamera()
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe delivers a snapshot after every state change. Slow consumers only
// see the latest snapshot. Call cancel to unsubscribe.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subMu.Unlock()
	ch <- c.Snapshot()
	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
}

// StartCamera enters live mode on the given facing. It is valid from
// selecting, and from live mode where it restarts on the new facing.
func (c *Controller) StartCamera(ctx context.Context, facing camera.Facing) (Snapshot, error) {
	return c.startCamera(ctx, facing, false, "start the camera")
}

// SwitchCamera restarts live mode on the opposite facing. A pending attempt
// is abandoned and scanning resumes if it was on.
func (c *Controller) SwitchCamera(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.mode != ModeLiveCamera || c.starting {
		mode := c.mode
		c.mu.Unlock()
		return c.Snapshot(), invalid(mode, "switch camera")
	}
	next := c.facing.Opposite()
	resume := c.scanning
	c.mu.Unlock()
	return c.startCamera(ctx, next, resume, "switch camera")
}

func (c *Controller) startCamera(ctx context.Context, facing camera.Facing, resume bool, action string) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if c.mode != ModeSelecting && c.mode != ModeLiveCamera {
		mode := c.mode
		c.mu.Unlock()
		return c.Snapshot(), invalid(mode, action)
	}
	if c.starting {
		c.mu.Unlock()
		return c.Snapshot(), invalid(ModeLiveCamera, action+" while the camera is starting")
	}
	release := c.teardownLocked("restart")
	c.clearResultLocked()
	gen := c.generation
	c.mode = ModeLiveCamera
	c.facing = facing
	c.starting = true
	c.setStatusLocked(StatusInfo, fmt.Sprintf("Starting %s camera…", facing))
	c.mu.Unlock()
	c.releaseCamera(release)
	c.publish()

	session, err := c.cam.Start(ctx, facing)

	c.mu.Lock()
	if gen != c.generation {
		// Teardown ran while the device was opening and left this session
		// for us to release.
		c.mu.Unlock()
		if err == nil {
			c.cam.StopSession(session.ID)
		}
		return c.Snapshot(), ErrStale
	}
	c.starting = false
	if err != nil {
		c.mode = ModeSelecting
		c.setStatusLocked(StatusError, "Camera unavailable: "+err.Error()+". "+services.Hint(err))
		c.mu.Unlock()
		c.publish()
		return c.Snapshot(), err
	}
	c.cameraActive = true
	c.sessionID = session.ID
	c.setStatusLocked(StatusOK, fmt.Sprintf("%s camera ready", textutil.TitleCase(string(facing))))
	if resume {
		c.startTickerLocked()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish()
	return snap, nil
}

// StopCamera leaves live mode and returns to selecting.
func (c *Controller) StopCamera() Snapshot {
	c.mu.Lock()
	var release string
	if c.mode == ModeLiveCamera {
		release = c.teardownLocked("camera stopped")
		c.mode = ModeSelecting
		c.candidates = nil
		c.setStatusLocked(StatusInfo, "Camera stopped")
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.releaseCamera(release)
	c.publish()
	return snap
}

// SetScanning starts or stops the interval ticker in live mode.
func (c *Controller) SetScanning(on bool) (Snapshot, error) {
	c.mu.Lock()
	if c.mode != ModeLiveCamera || (on && !c.cameraActive) {
		mode := c.mode
		c.mu.Unlock()
		return c.Snapshot(), invalid(mode, "toggle scanning")
	}
	switch {
	case on && !c.scanning:
		c.startTickerLocked()
		c.setStatusLocked(StatusInfo, "Scanning… hold the nose in frame")
	case !on && c.scanning:
		c.stopTickerLocked()
		c.setStatusLocked(StatusInfo, "Scanning paused")
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish()
	return snap, nil
}

// CaptureNow submits a frame immediately, subject to the pending guard. The
// search runs in the background; its outcome arrives through Subscribe.
func (c *Controller) CaptureNow() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.mode != ModeLiveCamera || !c.cameraActive || c.starting || c.resolving {
		mode := c.mode
		c.mu.Unlock()
		return invalid(mode, "capture")
	}
	att, err := c.beginLiveAttemptLocked(SourceManual)
	if err == nil {
		c.dispatchLocked(att)
	}
	c.mu.Unlock()
	c.publish()
	return err
}

// dispatchLocked runs a live attempt in the background. The WaitGroup is
// incremented under the lock so Close never races an Add.
func (c *Controller) dispatchLocked(att Attempt) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runAttempt(c.baseCtx, att)
	}()
}

// SubmitPhoto runs one search for a picked photo and, on an auto-accepted
// match, resolves the profile before returning.
func (c *Controller) SubmitPhoto(ctx context.Context, img frame.Image) (Snapshot, error) {
	if img.Empty() {
		return c.Snapshot(), services.Wrap(services.ErrValidation, "scan", "photo", "photo is empty", nil)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if c.mode != ModeSelecting && c.mode != ModeSinglePhoto {
		mode := c.mode
		c.mu.Unlock()
		return c.Snapshot(), invalid(mode, "submit a photo")
	}
	if c.pending || c.resolving {
		c.mu.Unlock()
		return c.Snapshot(), ErrAttemptPending
	}
	c.generation++
	c.clearResultLocked()
	c.mode = ModeSinglePhoto
	c.preview = img
	att := c.newAttemptLocked(SourcePhoto, img)
	c.setStatusLocked(StatusInfo, "Searching registry…")
	c.mu.Unlock()
	c.publish()

	c.runAttempt(ctx, att)
	return c.Snapshot(), nil
}

// SelectCandidate accepts one of the offered sub-threshold candidates.
func (c *Controller) SelectCandidate(ctx context.Context, petID int64) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if c.resolving {
		c.mu.Unlock()
		return c.Snapshot(), ErrAttemptPending
	}
	idx := slices.IndexFunc(c.candidates, func(cand biometry.Candidate) bool { return cand.PetID == petID })
	if idx < 0 {
		c.mu.Unlock()
		return c.Snapshot(), fmt.Errorf("%w: pet %d", ErrNoCandidate, petID)
	}
	cand := c.candidates[idx]
	img := c.candidateImg
	var release string
	if c.mode == ModeLiveCamera {
		release = c.teardownLocked("candidate selected")
	} else {
		c.generation++
		c.pending = false
	}
	gen := c.acceptLocked(cand, img)
	c.mu.Unlock()
	c.releaseCamera(release)
	c.publish()

	c.resolve(ctx, gen, cand)
	return c.Snapshot(), nil
}

// RetryProfile refetches the profile of the accepted candidate after a
// failed fetch, without scanning again.
func (c *Controller) RetryProfile(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if c.accepted == nil || !c.profileError || c.resolving {
		mode := c.mode
		c.mu.Unlock()
		return c.Snapshot(), invalid(mode, "retry the profile")
	}
	cand := *c.accepted
	c.resolving = true
	c.profileError = false
	c.setStatusLocked(StatusInfo, "Loading profile…")
	gen := c.generation
	c.mu.Unlock()
	c.publish()

	c.resolve(ctx, gen, cand)
	return c.Snapshot(), nil
}

// Reset returns to selecting from any mode, releasing the camera and
// discarding every pending or resolved result.
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	release := c.teardownLocked("reset")
	c.clearResultLocked()
	c.mode = ModeSelecting
	c.attempts = 0
	c.setStatusLocked(StatusInfo, "Choose live camera or a photo")
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.releaseCamera(release)
	c.publish()
	return snap
}

// Close tears everything down and waits for background work. It is
// idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	release := c.teardownLocked("closed")
	c.clearResultLocked()
	c.mode = ModeSelecting
	c.mu.Unlock()

	c.releaseCamera(release)
	c.cancel()
	c.wg.Wait()

	c.subMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subMu.Unlock()
}

// teardownLocked is the single exit path from live mode. It cancels the
// ticker and bumps the generation so in-flight work is discarded when it
// returns. It returns the session the caller must pass to releaseCamera
// after unlocking; a session still opening is released by startCamera once
// it sees the generation moved.
func (c *Controller) teardownLocked(reason string) string {
	c.stopTickerLocked()
	var release string
	if c.mode == ModeLiveCamera && c.cam != nil {
		if !c.starting {
			release = c.sessionID
		}
		if c.cameraActive || c.starting {
			c.logger.Info("live session torn down",
				logging.String(logging.FieldEventType, "scan_teardown"),
				logging.String(logging.FieldSessionID, c.sessionID),
				logging.String("reason", reason),
			)
		}
	}
	c.cameraActive = false
	c.starting = false
	c.sessionID = ""
	c.pending = false
	c.generation++
	return release
}

// releaseCamera stops the named session. It must run without c.mu held:
// stopping waits for the capture process to exit.
func (c *Controller) releaseCamera(sessionID string) {
	if sessionID != "" && c.cam != nil {
		c.cam.StopSession(sessionID)
	}
}

func (c *Controller) clearResultLocked() {
	c.candidates = nil
	c.candidateImg = frame.Image{}
	c.accepted = nil
	c.profile = nil
	c.similarity = 0
	c.preview = frame.Image{}
	c.profileError = false
	c.resolving = false
}

func (c *Controller) startTickerLocked() {
	if c.scanning {
		return
	}
	stop := make(chan struct{})
	ticker := c.newTicker(c.settings.Interval)
	gen := c.generation
	c.tickStop = stop
	c.scanning = true
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				c.tick(gen)
			}
		}
	}()
}

// stopTickerLocked is idempotent.
func (c *Controller) stopTickerLocked() {
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
	c.scanning = false
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.mode != ModeLiveCamera || !c.cameraActive || c.starting || c.resolving {
		c.mu.Unlock()
		return
	}
	if c.pending {
		c.mu.Unlock()
		c.logger.Debug("tick skipped; attempt pending")
		return
	}
	att, err := c.beginLiveAttemptLocked(SourceTick)
	if err == nil {
		c.dispatchLocked(att)
	}
	c.mu.Unlock()
	if err != nil {
		if !errors.Is(err, frame.ErrNoFrame) {
			c.logger.Debug("tick skipped", logging.Error(err))
		}
		return
	}
	c.publish()
}

func (c *Controller) beginLiveAttemptLocked(source Source) (Attempt, error) {
	if c.pending {
		return Attempt{}, ErrAttemptPending
	}
	img, err := c.sampler.Capture(c.cam.Surface())
	if err != nil {
		if source == SourceManual {
			c.setStatusLocked(StatusWarn, "No camera frame yet; try again")
		}
		return Attempt{}, err
	}
	att := c.newAttemptLocked(source, img)
	c.setStatusLocked(StatusInfo, fmt.Sprintf("Searching… (attempt %d)", c.attempts))
	return att, nil
}

func (c *Controller) newAttemptLocked(source Source, img frame.Image) Attempt {
	c.pending = true
	c.attempts++
	return Attempt{
		ID:          uuid.NewString(),
		Generation:  c.generation,
		SessionID:   c.sessionID,
		Mode:        c.mode,
		Source:      source,
		Image:       img,
		SubmittedAt: c.now(),
		Outcome:     Pending{},
	}
}

// runAttempt performs the search outside the lock and applies the outcome.
func (c *Controller) runAttempt(ctx context.Context, att Attempt) {
	logger := c.logger.With(
		logging.String(logging.FieldAttemptID, att.ID),
		logging.String(logging.FieldMode, string(att.Mode)),
	)
	result, err := c.searcher.Search(ctx, att.Image, c.settings.Threshold, c.settings.MaxResults)
	att.Outcome = outcomeOf(result, err)
	att.ResolvedAt = c.now()

	c.mu.Lock()
	if att.Generation != c.generation {
		c.mu.Unlock()
		att.Abandoned = true
		logger.Info("discarding response from abandoned session",
			logging.String(logging.FieldEventType, "scan_attempt_abandoned"),
			logging.String("outcome", att.Outcome.Label()),
		)
		c.record(att)
		return
	}
	c.pending = false

	var (
		accept  *biometry.Candidate
		gen     uint64
		release string
	)
	switch o := att.Outcome.(type) {
	case Matched:
		best := o.Best()
		if best.Similarity >= c.settings.AutoAccept {
			if c.mode == ModeLiveCamera {
				release = c.teardownLocked("match accepted")
			} else {
				c.generation++
			}
			gen = c.acceptLocked(best, att.Image)
			accept = &best
		} else {
			c.candidates = slices.Clone(o.Candidates)
			c.candidateImg = att.Image
			c.setStatusLocked(StatusWarn, fmt.Sprintf("%d possible match(es), best %s; choose one or keep scanning",
				len(o.Candidates), textutil.Percent(best.Similarity)))
		}
	case Empty:
		c.candidates = nil
		if c.mode == ModeSinglePhoto {
			c.setStatusLocked(StatusInfo, "Pet not registered. "+textutil.Fallback(o.Message, "No pet matches this nose-print."))
		} else {
			c.setStatusLocked(StatusInfo, fmt.Sprintf("No match yet (attempt %d). %s", c.attempts,
				textutil.Fallback(o.Message, "Keep the nose centered and well lit.")))
		}
	case Failed:
		c.setStatusLocked(StatusWarn, "Search failed: "+o.Err.Error())
		logging.WarnWithContext(logger, "search attempt failed", "scan_search_failed",
			logging.Error(o.Err),
			logging.String(logging.FieldErrorHint, services.Hint(o.Err)),
			logging.String(logging.FieldImpact, "this attempt produced no result"),
		)
	}
	c.mu.Unlock()
	c.releaseCamera(release)

	logger.Info("scan attempt resolved",
		logging.String(logging.FieldEventType, "scan_attempt_resolved"),
		logging.String("outcome", att.Outcome.Label()),
		logging.String("source", string(att.Source)),
		logging.Duration("latency", att.ResolvedAt.Sub(att.SubmittedAt)),
	)
	c.record(att)
	c.publish()

	if accept != nil {
		c.resolve(ctx, gen, *accept)
	}
}

// acceptLocked freezes the accepted candidate and its frame and marks the
// profile as resolving. It returns the generation the resolution belongs to.
func (c *Controller) acceptLocked(cand biometry.Candidate, img frame.Image) uint64 {
	c.accepted = &cand
	c.similarity = cand.Similarity
	c.preview = img
	c.candidates = nil
	c.candidateImg = frame.Image{}
	c.resolving = true
	c.profileError = false
	c.setStatusLocked(StatusInfo, fmt.Sprintf("Match %s found; loading profile…", textutil.Percent(cand.Similarity)))
	return c.generation
}

func (c *Controller) resolve(ctx context.Context, gen uint64, cand biometry.Candidate) {
	profile, err := c.resolver.Resolve(ctx, cand)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("discarding profile for abandoned session", logging.Int64("pet_id", cand.PetID))
		return
	}
	c.resolving = false
	if err != nil {
		c.profileError = true
		c.setStatusLocked(StatusError, "Match found but the profile could not be loaded: "+err.Error()+". Retry to fetch it again.")
		c.mu.Unlock()
		logging.WarnWithContext(c.logger, "profile fetch failed", "scan_profile_failed",
			logging.Int64("pet_id", cand.PetID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "match kept; profile can be retried"),
		)
		c.publish()
		return
	}
	c.profile = profile
	c.mode = ModeProfileShown
	c.setStatusLocked(StatusOK, fmt.Sprintf("Identified %s (%s)", textutil.Fallback(profile.Name, cand.Name), textutil.Percent(cand.Similarity)))
	c.mu.Unlock()

	c.logger.Info("pet identified",
		logging.String(logging.FieldEventType, "scan_identified"),
		logging.Int64("pet_id", cand.PetID),
		logging.Float64("similarity", cand.Similarity),
	)
	c.publish()
}

func (c *Controller) watchCamera() {
	defer c.wg.Done()
	events := c.cam.Events()
	for {
		select {
		case <-c.baseCtx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.handleCameraEvent(evt)
		}
	}
}

func (c *Controller) handleCameraEvent(evt camera.Event) {
	c.mu.Lock()
	if c.mode != ModeLiveCamera || evt.SessionID == "" || evt.SessionID != c.sessionID {
		c.mu.Unlock()
		c.logger.Debug("ignoring stale camera event", logging.String(logging.FieldSessionID, evt.SessionID))
		return
	}
	release := c.teardownLocked("camera lost")
	c.mode = ModeSelecting
	c.candidates = nil
	reason := "camera disconnected"
	if evt.Err != nil {
		reason = evt.Err.Error()
	}
	c.setStatusLocked(StatusError, "Camera lost: "+reason+". "+services.Hint(evt.Err))
	c.mu.Unlock()
	c.releaseCamera(release)
	c.publish()
}

func (c *Controller) setStatusLocked(kind StatusKind, text string) {
	c.status = Status{Text: text, Kind: kind, At: c.now()}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Mode:         c.mode,
		Facing:       c.facing,
		CameraActive: c.cameraActive,
		Starting:     c.starting,
		SessionID:    c.sessionID,
		Scanning:     c.scanning,
		Pending:      c.pending,
		Resolving:    c.resolving,
		Status:       c.status,
		Candidates:   slices.Clone(c.candidates),
		Similarity:   c.similarity,
		Preview:      c.preview,
		HasPreview:   !c.preview.Empty(),
		Attempts:     c.attempts,
		ProfileError: c.profileError,
		Generation:   c.generation,
	}
	if c.accepted != nil {
		cp := *c.accepted
		snap.Accepted = &cp
	}
	if c.profile != nil {
		snap.Profile = c.profile.Clone()
	}
	return snap
}

func (c *Controller) publish() {
	snap := c.Snapshot()
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (c *Controller) record(att Attempt) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(context.WithoutCancel(c.baseCtx), att); err != nil {
		c.logger.Warn("failed to record scan attempt",
			logging.String(logging.FieldAttemptID, att.ID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "history_record_failed"),
			logging.String(logging.FieldErrorHint, "check the history database path and permissions"),
			logging.String(logging.FieldImpact, "attempt missing from history"),
		)
	}
}
