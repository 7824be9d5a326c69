package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLatestCommand() *cobra.Command {
	var pathOnly bool

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent completed run",
		Long: `Show the most recent training run whose final model has actually
materialized on disk. Runs that merely declared a final model path do
not count; the weights file must exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := resolveManager(cmd)
			if err != nil {
				return err
			}

			r, err := mgr.LatestRun()
			if err != nil {
				return err
			}

			if pathOnly {
				modelPath, err := r.FinalModelPath()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), modelPath) //nolint:errcheck
				return nil
			}

			m, err := r.Manifest()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", r.ID())                      //nolint:errcheck
			fmt.Fprintf(cmd.OutOrStdout(), "  created:    %s\n", m.Timestamp)   //nolint:errcheck
			fmt.Fprintf(cmd.OutOrStdout(), "  base model: %s\n", m.BaseModel)   //nolint:errcheck
			fmt.Fprintf(cmd.OutOrStdout(), "  directory:  %s\n", r.Root())      //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().BoolVar(&pathOnly, "path", false, "Print only the final model path")

	return cmd
}
