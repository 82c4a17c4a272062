package station

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"petscan/internal/camera"
	"petscan/internal/config"
	"petscan/internal/logging"
	"petscan/internal/preflight"
	"petscan/internal/scan"
)

// ErrAlreadyRunning is returned when another station holds the lock.
var ErrAlreadyRunning = errors.New("another petscan station is already running")

// Station wires the capture, scan and history components behind the control
// API and enforces single-instance execution.
type Station struct {
	cfg      *config.Config
	logger   *slog.Logger
	hub      *logging.StreamHub
	lockPath string
	lock     *flock.Flock

	*Runtime
	hotplug *camera.HotplugWatcher
	server  *apiServer

	running atomic.Bool
}

// Status is the station runtime summary served by /api/status.
type Status struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	LockFilePath  string         `json:"lock_file"`
	HistoryDBPath string         `json:"history_db"`
	Hotplug       bool           `json:"hotplug"`
	LiveTracks    int            `json:"live_tracks"`
	Scan          scan.Snapshot  `json:"scan"`
	ContactLink   string         `json:"contact_link,omitempty"`
	History       map[string]int `json:"history,omitempty"`
}

// New builds a station from configuration. hub may be nil; when set, the
// /api/logs endpoint serves its events.
func New(cfg *config.Config, logger *slog.Logger, hub *logging.StreamHub) (*Station, error) {
	if cfg == nil {
		return nil, errors.New("station requires config")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	logger = logging.NewComponentLogger(logger, "station")

	rt, err := OpenRuntime(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Station{
		cfg:      cfg,
		logger:   logger,
		hub:      hub,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		Runtime:  rt,
	}
	if cfg.Camera.Hotplug {
		s.hotplug = camera.NewHotplugWatcher(logger, rt.Cameras.DeviceRemoved)
	}
	s.server = newAPIServer(cfg.Paths.APIBind, cfg.Paths.APIToken, s, logger)
	return s, nil
}

// Run acquires the station lock, starts the API server and the hotplug
// watcher, and blocks until ctx is cancelled or a component fails.
func (s *Station) Run(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("station already running")
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	s.running.Store(true)
	defer func() {
		s.running.Store(false)
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release station lock",
				logging.Error(err),
				logging.String(logging.FieldEventType, "station_unlock_failed"),
				logging.String(logging.FieldErrorHint, "remove "+s.lockPath+" if no station is running"),
				logging.String(logging.FieldImpact, "next start may report a running station"),
			)
		}
	}()

	s.logPreflight(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.server.serve(gctx)
	})
	if s.hotplug != nil {
		g.Go(func() error {
			if err := s.hotplug.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			s.hotplug.Stop()
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.Controller.Close()
		return nil
	})

	s.logger.Info("petscan station started",
		logging.String(logging.FieldEventType, "station_started"),
		logging.String("lock", s.lockPath),
		logging.String("bind", s.cfg.Paths.APIBind),
	)

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.ErrorWithContext(s.logger, "station stopped with error", "station_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.api_bind and camera configuration"),
		)
		if notifyErr := s.Notifier.NotifyError(context.WithoutCancel(ctx), err, "station"); notifyErr != nil {
			s.logger.Debug("station error notification failed", logging.Error(notifyErr))
		}
		return err
	}
	s.logger.Info("petscan station stopped", logging.String(logging.FieldEventType, "station_stopped"))
	return nil
}

// Close releases the controller, waits for pending alerts and closes the
// history database.
func (s *Station) Close() error {
	return s.Runtime.Close()
}

// Addr returns the bound API address once the server is listening.
func (s *Station) Addr() string {
	return s.server.addr()
}

// Status reports the station runtime summary.
func (s *Station) Status(ctx context.Context) Status {
	snap := s.Controller.Snapshot()
	status := Status{
		Running:       s.running.Load(),
		PID:           os.Getpid(),
		LockFilePath:  s.lockPath,
		HistoryDBPath: s.Store.Path(),
		Hotplug:       s.hotplug.Running(),
		LiveTracks:    s.Cameras.LiveTracks(),
		Scan:          snap,
		ContactLink:   s.Resolver.ContactLink(snap.Profile),
	}
	if stats, err := s.Store.Stats(ctx); err == nil {
		status.History = stats
	}
	return status
}

func (s *Station) logPreflight(ctx context.Context) {
	for _, result := range preflight.RunAll(ctx, s.cfg) {
		if result.Passed {
			s.logger.Debug("preflight passed", logging.String("check", result.Name), logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(s.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run 'petscan status' for details"),
			logging.String(logging.FieldImpact, "scans depending on "+result.Name+" will fail"),
		)
	}
}
