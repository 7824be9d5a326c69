package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntune/vulntune/internal/run"
)

func newNewCommand() *cobra.Command {
	var baseModel string

	cmd := &cobra.Command{
		Use:   "new [run-id]",
		Short: "Create a new training run directory",
		Long: `Create a training run directory with its full declared layout:
stage adapter directories, training-data directories, evaluation paths,
and the final model location, all recorded in run-manifest.json before
any training happens.

With no argument the run id is generated from the current time.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			runsDir, _ := cmd.Flags().GetString("runs-dir")
			if runsDir == "" {
				runsDir = cfg.Paths.Runs
			}
			if baseModel == "" {
				baseModel = cfg.Runs.BaseModel
			}
			mgr := run.NewManager(runsDir,
				run.WithPrefix(cfg.Runs.Prefix),
				run.WithBaseModel(baseModel),
			)

			id := ""
			if len(args) == 1 {
				id = args[0]
			}

			r, err := mgr.CreateRun(id)
			if err != nil {
				return fmt.Errorf("creating run: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created run %s\n", r.ID())           //nolint:errcheck
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", r.Root())                   //nolint:errcheck
			fmt.Fprintf(cmd.OutOrStdout(), "  manifest: %s\n", r.ManifestPath()) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&baseModel, "base-model", "", "Base model for stage 1 (default from .vulntune.yaml)")

	return cmd
}
