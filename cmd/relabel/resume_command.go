package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"relabel/internal/pipeline"
)

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var latest bool

	cmd := &cobra.Command{
		Use:   "resume [run-id]",
		Short: "Continue a failed run from its last completed step",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !latest {
				return errors.New("provide a run id or pass --latest")
			}
			if len(args) == 1 && latest {
				return errors.New("--latest cannot be combined with a run id")
			}

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

			runID := ""
			if latest {
				run, err := store.MostRecentResumable(cmd.Context())
				if err != nil {
					return err
				}
				runID = run.ID
			} else {
				runID = args[0]
			}

			flow := pipeline.New(cfg, logger, store)
			if err := flow.Resume(cmd.Context(), runID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s completed\n", runID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "Resume the most recent failed run")
	return cmd
}
