package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories, and backing services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, 8)
			failed := false

			for _, status := range preflight.CheckSystemDeps(cfg) {
				state := "ok"
				detail := status.Description
				if !status.Available {
					detail = status.Detail
					if status.Optional {
						state = "missing (optional)"
					} else {
						state = "missing"
						failed = true
					}
				}
				rows = append(rows, []string{status.Name, state, detail})
			}

			checks := []preflight.Result{
				preflight.CheckDirectoryAccess("Storage directory", cfg.Paths.StorageDir),
				preflight.CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
				preflight.CheckRedis(cmd.Context(), cfg),
			}
			for _, result := range checks {
				state := "ok"
				if !result.Passed {
					state = "failed"
					failed = true
				}
				rows = append(rows, []string{result.Name, state, result.Detail})
			}

			// An unconfigured detector degrades renders instead of breaking
			// them, so it warns rather than fails.
			if llm := preflight.CheckLLM(cfg); llm.Passed {
				rows = append(rows, []string{llm.Name, "ok", llm.Detail})
			} else {
				rows = append(rows, []string{llm.Name, "warning", llm.Detail})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"CHECK", "STATE", "DETAIL"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if failed {
				return fmt.Errorf("one or more checks failed")
			}
			return nil
		},
	}
}
