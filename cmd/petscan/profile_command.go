package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"petscan/internal/biometry"
	"petscan/internal/resolve"
)

func newProfileCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "profile <pet-id>",
		Short: "Fetch the identification profile of a pet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			profile, err := client.FetchProfile(cmd.Context(), petID)
			if err != nil {
				return err
			}
			link := resolve.ContactLink(profile, cfg.Profile.ContactCountryCode)
			if jsonOutput {
				return writeJSON(cmd, struct {
					*biometry.Profile
					ContactLink string `json:"contact_link,omitempty"`
				}{profile, link})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Join(profileLines(profile, 0, link, shouldColorize(out)), "\n"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
