package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relabel/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute the full relabeling pipeline as a new run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			flow := pipeline.New(cfg, logger, store)
			runID, err := flow.Run(cmd.Context())
			if err != nil {
				if runID != "" {
					fmt.Fprintf(cmd.OutOrStdout(),
						"Run %s failed; fix the cause and resume with `relabel resume %s`\n", runID, runID)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s completed\n", runID)
			return nil
		},
	}
}
