package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"petscan/internal/camera"
	"petscan/internal/scan"
	"petscan/internal/station"
)

func newLiveCommand(ctx *commandContext) *cobra.Command {
	var facingFlag string

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Scan nose-prints continuously from the camera",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			facing := scan.SettingsFromConfig(cfg).Facing
			if facingFlag != "" {
				if facing, err = camera.ParseFacing(facingFlag); err != nil {
					return err
				}
			}
			running, err := stationLocked(cfg)
			if err != nil {
				return err
			}
			if running {
				return fmt.Errorf("%w; stop it or use its control API", station.ErrAlreadyRunning)
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

			ui := newConsole(rt.Controller, rt.Resolver.ContactLink, cmd.InOrStdin(), cmd.OutOrStdout(), facing)
			return ui.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&facingFlag, "facing", "", "Camera to start with (front or back)")
	return cmd
}
