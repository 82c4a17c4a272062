package config

// Camera facings accepted by camera.default_facing.
const (
	FacingFront = "front"
	FacingBack  = "back"
)

const (
	defaultStateDir               = "~/.local/share/petscan"
	defaultLogDir                 = "~/.local/share/petscan/logs"
	defaultAPIBind                = "127.0.0.1:7590"
	defaultAPIBaseURL             = "http://localhost:8000/api/v1"
	defaultAPITimeoutSeconds      = 15
	defaultFFmpegBinary           = "ffmpeg"
	defaultFrontDevice            = "/dev/video0"
	defaultBackDevice             = "/dev/video2"
	defaultCameraWidth            = 1280
	defaultCameraHeight           = 720
	defaultCameraFramerate        = 15
	defaultCameraStartTimeout     = 10
	defaultScanIntervalMS         = 2000
	defaultSimilarityThreshold    = 0.75
	defaultAutoAcceptThreshold    = 0.80
	defaultMaxResults             = 5
	defaultJPEGQuality            = 80
	defaultProfileCacheTTLSeconds = 300
	defaultContactCountryCode     = "55"
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogMaxSizeMB           = 20
	defaultLogMaxBackups          = 5
	defaultLogRetentionDays       = 30
	minSimilarityThreshold        = 0.5
	maxResultsLimit               = 20
	minScanIntervalMS             = 250
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		API: API{
			BaseURL:        defaultAPIBaseURL,
			TimeoutSeconds: defaultAPITimeoutSeconds,
		},
		Camera: Camera{
			FFmpegBinary:        defaultFFmpegBinary,
			FrontDevice:         defaultFrontDevice,
			BackDevice:          defaultBackDevice,
			DefaultFacing:       FacingBack,
			Width:               defaultCameraWidth,
			Height:              defaultCameraHeight,
			Framerate:           defaultCameraFramerate,
			StartTimeoutSeconds: defaultCameraStartTimeout,
			Hotplug:             true,
		},
		Scan: Scan{
			IntervalMS:          defaultScanIntervalMS,
			SimilarityThreshold: defaultSimilarityThreshold,
			AutoAcceptThreshold: defaultAutoAcceptThreshold,
			MaxResults:          defaultMaxResults,
			JPEGQuality:         defaultJPEGQuality,
		},
		Profile: Profile{
			CacheTTLSeconds:    defaultProfileCacheTTLSeconds,
			ContactCountryCode: defaultContactCountryCode,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			LostPet:        true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			MaxSizeMB:     defaultLogMaxSizeMB,
			MaxBackups:    defaultLogMaxBackups,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
