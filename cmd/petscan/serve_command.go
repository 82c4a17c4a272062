package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"petscan/internal/logging"
	"petscan/internal/station"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan station behind the local control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Paths.APIBind = bind
			}

			hub := logging.NewStreamHub(4096)
			opts := logging.OptionsFromConfig(cfg)
			opts.Stream = hub
			if ctx.verbose != nil && *ctx.verbose {
				opts.Level = "debug"
			}
			logger, err := logging.New(opts)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			st, err := station.New(cfg, logger, hub)
			if err != nil {
				return fmt.Errorf("create station: %w", err)
			}
			defer st.Close()

			if err := st.Run(cmd.Context()); err != nil {
				if errors.Is(err, station.ErrAlreadyRunning) {
					return fmt.Errorf("%w (lock %s)", err, cfg.LockPath())
				}
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override paths.api_bind for this run")
	return cmd
}
