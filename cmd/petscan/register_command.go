package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"petscan/internal/biometry"
	"petscan/internal/frame"
	"petscan/internal/textutil"
)

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var token string
	var showStatus bool
	var remove bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "register <pet-id> [photo]",
		Short: "Enroll, inspect or delete a pet's nose-print",
		Long: "Enroll the nose-print photo of a pet you own. With --status the stored record is shown;\n" +
			"with --delete it is removed. Requires an owner token (api.auth_token or --token).",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if showStatus && remove {
				return fmt.Errorf("--status and --delete are mutually exclusive")
			}
			petID, err := parsePetID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.commandLogger(cfg)
			if err != nil {
				return err
			}
			client, err := biometry.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			creds := biometry.Credentials{Token: textutil.Fallback(strings.TrimSpace(token), cfg.API.AuthToken)}
			out := cmd.OutOrStdout()

			switch {
			case remove:
				if err := client.Delete(cmd.Context(), creds, petID); err != nil {
					return err
				}
				fmt.Fprintf(out, "Nose-print of pet %d deleted\n", petID)
				return nil
			case showStatus:
				enrollment, err := client.Status(cmd.Context(), creds, petID)
				if err != nil {
					return err
				}
				return printEnrollment(cmd, enrollment, jsonOutput)
			}

			if len(args) < 2 {
				return fmt.Errorf("a photo is required to register a nose-print")
			}
			img, err := frame.LoadPhoto(args[1])
			if err != nil {
				return err
			}
			enrollment, err := client.Register(cmd.Context(), creds, petID, img)
			if err != nil {
				return err
			}
			if !jsonOutput {
				fmt.Fprintf(out, "Nose-print of pet %d registered\n", petID)
			}
			return printEnrollment(cmd, enrollment, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Owner bearer token (overrides api.auth_token)")
	cmd.Flags().BoolVar(&showStatus, "status", false, "Show the stored nose-print record")
	cmd.Flags().BoolVar(&remove, "delete", false, "Delete the stored nose-print")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printEnrollment(cmd *cobra.Command, enrollment *biometry.Enrollment, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(cmd, enrollment)
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	quality, qualityKind := "-", statusInfo
	if score := enrollment.QualityScore; score != nil {
		quality = fmt.Sprintf("%.0f/100", *score)
		qualityKind = qualityStatus(*score)
	}
	created := "-"
	if !enrollment.CreatedAt.IsZero() {
		created = enrollment.CreatedAt.Format("2006-01-02 15:04")
	}
	lines := []string{
		renderStatusLine("Pet ID", statusInfo, strconv.FormatInt(enrollment.PetID, 10), colorize),
		renderStatusLine("Active", textutil.Ternary(enrollment.IsActive, statusOK, statusWarn), yesNo(enrollment.IsActive), colorize),
		renderStatusLine("Quality", qualityKind, quality, colorize),
		renderStatusLine("Registered", statusInfo, created, colorize),
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))
	return nil
}

// qualityStatus grades the registry's 0-100 enrollment quality score.
func qualityStatus(score float64) statusKind {
	switch {
	case score >= 80:
		return statusOK
	case score >= 50:
		return statusWarn
	default:
		return statusError
	}
}

func parsePetID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid pet id %q", raw)
	}
	return id, nil
}
