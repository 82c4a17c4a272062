package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeCamera()
	c.normalizeScan()
	c.normalizeProfile()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	if value, ok := os.LookupEnv("PETSCAN_API_URL"); ok && strings.TrimSpace(value) != "" {
		c.API.BaseURL = strings.TrimSpace(value)
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultAPIBaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	c.API.AuthToken = strings.TrimSpace(c.API.AuthToken)
	if c.API.AuthToken == "" {
		if value, ok := os.LookupEnv("PETSCAN_API_TOKEN"); ok {
			c.API.AuthToken = strings.TrimSpace(value)
		}
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = defaultAPITimeoutSeconds
	}
}

func (c *Config) normalizeCamera() {
	c.Camera.FFmpegBinary = strings.TrimSpace(c.Camera.FFmpegBinary)
	if c.Camera.FFmpegBinary == "" {
		c.Camera.FFmpegBinary = defaultFFmpegBinary
	}
	c.Camera.FrontDevice = strings.TrimSpace(c.Camera.FrontDevice)
	c.Camera.BackDevice = strings.TrimSpace(c.Camera.BackDevice)
	c.Camera.DefaultFacing = strings.ToLower(strings.TrimSpace(c.Camera.DefaultFacing))
	if c.Camera.DefaultFacing == "" {
		c.Camera.DefaultFacing = FacingBack
	}
	if c.Camera.StartTimeoutSeconds <= 0 {
		c.Camera.StartTimeoutSeconds = defaultCameraStartTimeout
	}
}

func (c *Config) normalizeScan() {
	if c.Scan.IntervalMS == 0 {
		c.Scan.IntervalMS = defaultScanIntervalMS
	}
	if c.Scan.MaxResults == 0 {
		c.Scan.MaxResults = defaultMaxResults
	}
	if c.Scan.JPEGQuality == 0 {
		c.Scan.JPEGQuality = defaultJPEGQuality
	}
}

func (c *Config) normalizeProfile() {
	if c.Profile.CacheTTLSeconds < 0 {
		c.Profile.CacheTTLSeconds = 0
	}
	c.Profile.ContactCountryCode = strings.TrimPrefix(strings.TrimSpace(c.Profile.ContactCountryCode), "+")
	if c.Profile.ContactCountryCode == "" {
		c.Profile.ContactCountryCode = defaultContactCountryCode
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("PETSCAN_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
