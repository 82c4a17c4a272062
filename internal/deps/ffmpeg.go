package deps

import (
	"path/filepath"
	"strings"
)

const defaultFFmpeg = "ffmpeg"

// ResolveFFmpegPath returns the configured capture binary, falling back to
// ffmpeg on PATH when the setting is blank.
func ResolveFFmpegPath(configured string) string {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return trimmed
	}
	return defaultFFmpeg
}

// CheckFFmpeg reports the ffmpeg binary the camera will execute.
func CheckFFmpeg(configured string) Status {
	return checkBinary(Requirement{
		Name:        "FFmpeg",
		Command:     ResolveFFmpegPath(configured),
		Description: "Required for camera capture",
	})
}

// ResolveFFprobePath returns the ffprobe binary installed alongside the
// configured ffmpeg, or ffprobe on PATH.
func ResolveFFprobePath(ffmpegConfigured string) string {
	ffmpeg := ResolveFFmpegPath(ffmpegConfigured)
	dir, base := filepath.Split(ffmpeg)
	if !strings.HasPrefix(base, defaultFFmpeg) {
		return "ffprobe"
	}
	return dir + "ffprobe" + strings.TrimPrefix(base, defaultFFmpeg)
}
