package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"relabel/internal/pipeline"
)

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Display the pipeline steps in execution order",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := pipeline.Steps()
			rows := make([][]string, 0, len(steps))
			for i, step := range steps {
				rows = append(rows, []string{strconv.Itoa(i + 1), step.Name, step.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Step", "Description"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
