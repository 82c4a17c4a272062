package preflight

import (
	"context"
	"strings"
	"time"

	"petscan/internal/config"
	"petscan/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail"`
	Optional bool   `json:"optional,omitempty"`
}

// RunAll executes every applicable preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFFmpegBinary(cfg.Camera.FFmpegBinary),
		CheckDevice("Front camera", cfg.Camera.FrontDevice),
		CheckDevice("Back camera", cfg.Camera.BackDevice),
		CheckRegistry(ctx, cfg.API.BaseURL),
	}

	if strings.TrimSpace(cfg.API.AuthToken) != "" {
		results = append(results, CheckCredentials(cfg.API.AuthToken, time.Now()))
	}

	return results
}

// RunProbes asks ffprobe for each configured camera's capture format.
func RunProbes(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	ffprobe := deps.ResolveFFprobePath(cfg.Camera.FFmpegBinary)
	return []Result{
		CheckDeviceFormat(ctx, "Front camera", cfg.Camera.FrontDevice, ffprobe),
		CheckDeviceFormat(ctx, "Back camera", cfg.Camera.BackDevice, ffprobe),
	}
}

// Failed returns the non-optional results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
