package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateProfile(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		defaultPath, pathErr := DefaultConfigPath()
		if pathErr != nil {
			defaultPath = "~/.config/petscan/config.toml"
		}
		return fmt.Errorf("api.base_url must be an absolute URL. Set PETSCAN_API_URL env var or edit %s (create with 'petscan config init')", defaultPath)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url scheme %q is not supported (use http or https)", parsed.Scheme)
	}
	return ensurePositiveMap(map[string]int{
		"api.timeout_seconds":           c.API.TimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateCamera() error {
	if c.Camera.FrontDevice == "" && c.Camera.BackDevice == "" {
		return errors.New("camera.front_device or camera.back_device must be set")
	}
	switch c.Camera.DefaultFacing {
	case FacingFront, FacingBack:
	default:
		return fmt.Errorf("camera.default_facing must be %q or %q", FacingFront, FacingBack)
	}
	if err := ensurePositiveMap(map[string]int{
		"camera.width":                 c.Camera.Width,
		"camera.height":                c.Camera.Height,
		"camera.framerate":             c.Camera.Framerate,
		"camera.start_timeout_seconds": c.Camera.StartTimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.IntervalMS < minScanIntervalMS {
		return fmt.Errorf("scan.interval_ms must be at least %d", minScanIntervalMS)
	}
	if c.Scan.SimilarityThreshold < minSimilarityThreshold || c.Scan.SimilarityThreshold > 1 {
		return fmt.Errorf("scan.similarity_threshold must be between %.1f and 1", minSimilarityThreshold)
	}
	if c.Scan.AutoAcceptThreshold <= 0 || c.Scan.AutoAcceptThreshold > 1 {
		return errors.New("scan.auto_accept_threshold must be between 0 and 1")
	}
	if c.Scan.AutoAcceptThreshold < c.Scan.SimilarityThreshold {
		return errors.New("scan.auto_accept_threshold must be >= scan.similarity_threshold")
	}
	if c.Scan.MaxResults < 1 || c.Scan.MaxResults > maxResultsLimit {
		return fmt.Errorf("scan.max_results must be between 1 and %d", maxResultsLimit)
	}
	if c.Scan.JPEGQuality < 1 || c.Scan.JPEGQuality > 100 {
		return errors.New("scan.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateProfile() error {
	for _, r := range c.Profile.ContactCountryCode {
		if r < '0' || r > '9' {
			return errors.New("profile.contact_country_code must contain digits only")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
