package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"petscan/internal/biometry"
	"petscan/internal/frame"
	"petscan/internal/scan"
	"petscan/internal/station"
)

// photoController is the subset of scan.Controller the photo flow drives.
type photoController interface {
	SubmitPhoto(ctx context.Context, img frame.Image) (scan.Snapshot, error)
	SelectCandidate(ctx context.Context, petID int64) (scan.Snapshot, error)
	RetryProfile(ctx context.Context) (scan.Snapshot, error)
}

type photoOptions struct {
	selectID int64
	retries  int
	prompt   bool
	json     bool
}

type photoResult struct {
	scan.Snapshot
	ContactLink string `json:"contact_link,omitempty"`
}

func newPhotoCommand(ctx *commandContext) *cobra.Command {
	var opts photoOptions

	cmd := &cobra.Command{
		Use:   "photo <file>",
		Short: "Identify a pet from a nose-print photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			img, err := frame.LoadPhoto(args[0])
			if err != nil {
				return err
			}
			logger, err := ctx.commandLogger(cfg)
			if err != nil {
				return err
			}
			rt, err := station.OpenRuntime(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			opts.prompt = !opts.json && opts.selectID == 0 && isTerminal(cmd.InOrStdin())
			return runPhoto(cmd.Context(), rt.Controller, rt.Resolver.ContactLink, img, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().Int64Var(&opts.selectID, "select", 0, "Pet ID to accept when only lower-similarity candidates are found")
	cmd.Flags().IntVar(&opts.retries, "retries", 1, "Profile fetch retries after a match")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output the final scan state as JSON")
	return cmd
}

func runPhoto(ctx context.Context, ctrl photoController, contact func(*biometry.Profile) string, img frame.Image, opts photoOptions, in io.Reader, out io.Writer) error {
	colorize := !opts.json && shouldColorize(out)
	report := func(snap scan.Snapshot) {
		if !opts.json {
			fmt.Fprintln(out, renderStatusLine(modeLabel(snap), scanStatusKind(snap.Status.Kind), snap.Status.Text, colorize))
		}
	}

	snap, err := ctrl.SubmitPhoto(ctx, img)
	if err != nil {
		return err
	}
	report(snap)

	if len(snap.Candidates) > 0 && snap.Profile == nil {
		if !opts.json {
			fmt.Fprintln(out, candidateTable(snap.Candidates))
		}
		petID := opts.selectID
		if petID == 0 && opts.prompt {
			petID = promptCandidate(in, out, snap.Candidates)
		}
		if petID > 0 {
			if snap, err = ctrl.SelectCandidate(ctx, petID); err != nil {
				return err
			}
			report(snap)
		}
	}

	for attempt := 0; snap.ProfileError && attempt < opts.retries; attempt++ {
		if snap, err = ctrl.RetryProfile(ctx); err != nil {
			return err
		}
		report(snap)
	}

	link := ""
	if snap.Profile != nil && contact != nil {
		link = contact(snap.Profile)
	}
	if opts.json {
		if err := writeJSONTo(out, photoResult{Snapshot: snap, ContactLink: link}); err != nil {
			return err
		}
	} else if snap.Profile != nil {
		fmt.Fprintln(out, strings.Join(profileLines(snap.Profile, snap.Similarity, link, colorize), "\n"))
	}

	if snap.ProfileError {
		return fmt.Errorf("pet matched but the profile could not be loaded")
	}
	return nil
}

// promptCandidate asks for a 1-based candidate index; blank input skips.
func promptCandidate(in io.Reader, out io.Writer, candidates []biometry.Candidate) int64 {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "Select a candidate [1-%d] or press Enter to skip: ", len(candidates))
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			return 0
		}
		if idx, convErr := strconv.Atoi(line); convErr == nil && idx >= 1 && idx <= len(candidates) {
			return candidates[idx-1].PetID
		}
		if err != nil {
			return 0
		}
		fmt.Fprintf(out, "%q is not a listed candidate\n", line)
	}
}

func isTerminal(r io.Reader) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
