package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/jobs"
	"clipforge/internal/storage"
	"clipforge/internal/sweeper"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one cleanup pass over expired completed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			store, err := jobs.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			layout := storage.NewLayout(cfg.Paths.StorageDir)
			sw := sweeper.New(store, layout, cfg.Retention(), cfg.SweepInterval(), logger)
			swept, err := sw.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed artifacts for %d job(s)\n", swept)
			return nil
		},
	}
}
