package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"petscan/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var filter history.Filter
	var jsonOutput bool
	var pruneOlder time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded scan attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if pruneOlder > 0 {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-pruneOlder))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d attempt(s) older than %s\n", removed, pruneOlder)
				return nil
			}

			entries, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No scan attempts recorded")
				return nil
			}
			fmt.Fprintln(out, historyTable(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum number of attempts to show")
	cmd.Flags().StringVar(&filter.SessionID, "session", "", "Only show attempts from this camera session")
	cmd.Flags().StringVar(&filter.Outcome, "outcome", "", "Only show attempts with this outcome (matched, empty, failed, abandoned)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().DurationVar(&pruneOlder, "prune-older-than", 0, "Delete attempts older than this age instead of listing")
	return cmd
}
