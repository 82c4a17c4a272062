package station

import (
	"errors"
	"fmt"
	"log/slog"

	"petscan/internal/biometry"
	"petscan/internal/camera"
	"petscan/internal/config"
	"petscan/internal/frame"
	"petscan/internal/history"
	"petscan/internal/notifications"
	"petscan/internal/resolve"
	"petscan/internal/scan"
)

// Runtime is the wired scan pipeline shared by the station daemon and the
// interactive CLI commands.
type Runtime struct {
	Client     *biometry.Client
	Cameras    *camera.Manager
	Controller *scan.Controller
	Resolver   *resolve.Resolver
	Store      *history.Store
	Notifier   notifications.Service
}

// OpenRuntime builds the registry client, history ledger, camera manager,
// resolver and scan controller from configuration.
func OpenRuntime(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("runtime requires config")
	}
	client, err := biometry.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	notifier := notifications.NewService(cfg)
	cameras := camera.NewManager(cfg, camera.NewFFmpegOpener(cfg, logger), logger)
	resolver := resolve.NewFromConfig(cfg, client, notifier, logger)
	controller := scan.NewController(scan.SettingsFromConfig(cfg), scan.Deps{
		Camera:   cameras,
		Sampler:  frame.NewSampler(cfg.Scan.JPEGQuality),
		Searcher: client,
		Resolver: resolver,
		Recorder: store,
		Logger:   logger,
	})
	return &Runtime{
		Client:     client,
		Cameras:    cameras,
		Controller: controller,
		Resolver:   resolver,
		Store:      store,
		Notifier:   notifier,
	}, nil
}

// Close stops the controller and any camera session, waits for pending
// lost-pet alerts and closes the history database.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.Controller.Close()
	r.Cameras.Stop()
	r.Resolver.Wait()
	return r.Store.Close()
}
