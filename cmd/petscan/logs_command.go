package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"petscan/internal/config"
	"petscan/internal/logs"
)

type logsOptions struct {
	lines     int
	follow    bool
	component string
	level     string
	fileOnly  bool
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show station logs",
		Long: "Show recent log events. Reads from the running station when one holds the lock,\n" +
			"otherwise from the rotated log file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !opts.fileOnly {
				err := streamStationLogs(cmd.Context(), cfg, opts, out)
				if err == nil || !errors.Is(err, logs.ErrAPIUnavailable) {
					return err
				}
			}
			return tailLogFile(cmd.Context(), cfg.LogPath(), opts, out)
		},
	}

	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 20, "Number of recent events to show (0 for none)")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Keep printing new events")
	cmd.Flags().StringVar(&opts.component, "component", "", "Only show events from this component")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.fileOnly, "file", false, "Read the log file even when a station is running")
	return cmd
}

// streamStationLogs returns an error wrapping logs.ErrAPIUnavailable when no
// station can be queried so the caller can fall back to the file.
func streamStationLogs(ctx context.Context, cfg *config.Config, opts logsOptions, out io.Writer) error {
	running, err := stationLocked(cfg)
	if err != nil || !running {
		return logs.ErrAPIUnavailable
	}
	base, err := stationURL(cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("%w: %v", logs.ErrAPIUnavailable, err)
	}
	client, err := logs.NewStreamClient(base, cfg.Paths.APIToken)
	if err != nil {
		return err
	}

	query := logs.StreamQuery{Limit: opts.lines, Component: opts.component, Level: opts.level}
	if query.Limit <= 0 {
		query.Limit = 1
	}
	printed := false
	first := true
	for {
		page, err := client.Fetch(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if logs.IsAPIUnavailable(err) {
				if printed {
					return errors.New("station stopped")
				}
				return logs.ErrAPIUnavailable
			}
			return err
		}
		if !first || opts.lines > 0 {
			for _, evt := range page.Events {
				fmt.Fprintln(out, logs.FormatEvent(evt))
				printed = true
			}
		}
		first = false
		if !opts.follow {
			if !printed {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		}
		query.Since = page.Next
		query.Limit = 200
		query.Follow = true
	}
}

func tailLogFile(ctx context.Context, path string, opts logsOptions, out io.Writer) error {
	if path == "" {
		return errors.New("file logging disabled (paths.log_dir is empty)")
	}
	tail := logs.TailOptions{Offset: -1, Limit: opts.lines}
	printed := false
	for {
		result, err := logs.Tail(ctx, path, tail)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("tail %s: %w", path, err)
		}
		for _, line := range result.Lines {
			if rendered, ok := renderLogLine(line, opts); ok {
				fmt.Fprintln(out, rendered)
				printed = true
			}
		}
		if !opts.follow {
			if !printed {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		tail = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: time.Second}
	}
}

// renderLogLine applies the component and level filters to a file line.
// Lines that are not JSON pass through unfiltered.
func renderLogLine(line string, opts logsOptions) (string, bool) {
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	evt, ok := logs.ParseLine(line)
	if !ok {
		return line, true
	}
	if opts.component != "" && !strings.EqualFold(opts.component, evt.Component) {
		return "", false
	}
	if opts.level != "" && !logs.LevelAtLeast(evt.Level, opts.level) {
		return "", false
	}
	return logs.FormatEvent(evt), true
}
