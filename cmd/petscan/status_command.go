package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"petscan/internal/preflight"
	"petscan/internal/station"
)

type statusReport struct {
	Checks         []preflight.Result `json:"checks"`
	StationRunning bool               `json:"station_running"`
	Station        *station.Status    `json:"station,omitempty"`
	Error          string             `json:"station_error,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		probe      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check dependencies, devices, the registry and the station",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			report := statusReport{Checks: preflight.RunAll(cmd.Context(), cfg)}
			status, stationErr := fetchStationStatus(cmd.Context(), cfg)
			if probe && status == nil {
				report.Checks = append(report.Checks, preflight.RunProbes(cmd.Context(), cfg)...)
			}
			report.Station = status
			report.StationRunning = !errors.Is(stationErr, errStationNotRunning)
			if stationErr != nil && report.StationRunning {
				report.Error = stationErr.Error()
			}

			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, strings.Join(statusLines(report, colorize), "\n"))
			}

			if failed := preflight.Failed(report.Checks); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&probe, "probe", false, "Probe each camera's capture format with ffprobe (skipped while a station is capturing)")
	return cmd
}

func statusLines(report statusReport, colorize bool) []string {
	lines := renderSectionHeader("Checks", colorize)
	for _, check := range report.Checks {
		kind := statusOK
		switch {
		case !check.Passed && check.Optional:
			kind = statusWarn
		case !check.Passed:
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Station", colorize)...)
	if report.Station == nil {
		if report.StationRunning {
			return append(lines, renderStatusLine("Station", statusWarn, "running; "+report.Error, colorize))
		}
		return append(lines, renderStatusLine("Station", statusInfo, "not running", colorize))
	}

	st := report.Station
	lines = append(lines,
		renderStatusLine("Station", statusOK, fmt.Sprintf("running (pid %d)", st.PID), colorize),
		renderStatusLine("Mode", statusInfo, string(st.Scan.Mode), colorize),
		renderStatusLine("Scan", scanStatusKind(st.Scan.Status.Kind), st.Scan.Status.Text, colorize),
		renderStatusLine("Camera", statusInfo, cameraSummary(st), colorize),
		renderStatusLine("Hotplug", statusInfo, yesNo(st.Hotplug), colorize),
	)
	if len(st.History) > 0 {
		lines = append(lines, renderStatusLine("History", statusInfo, historySummary(st.History), colorize))
	}
	return lines
}

func cameraSummary(st *station.Status) string {
	if !st.Scan.CameraActive {
		return fmt.Sprintf("idle (%s)", st.Scan.Facing)
	}
	state := "paused"
	if st.Scan.Scanning {
		state = "scanning"
	}
	return fmt.Sprintf("%s camera %s, %d attempt(s)", st.Scan.Facing, state, st.Scan.Attempts)
}

func historySummary(stats map[string]int) string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, stats[k]))
	}
	return strings.Join(parts, " ")
}

