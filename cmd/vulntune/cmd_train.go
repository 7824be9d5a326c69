package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vulntune/vulntune/internal/artifact"
	"github.com/vulntune/vulntune/internal/trainer"
)

func newTrainCommand() *cobra.Command {
	var stage int

	cmd := &cobra.Command{
		Use:   "train <run-id>",
		Short: "Train one stage of a run",
		Long: `Run the training subprocess for one stage of a run. Stage 1 trains
from the configured base model; stage 2 trains from the stage 1 merged
model when one has materialized, falling back to the base model.

The command writes adapters into the stage's declared adapter directory
and records the hyperparameters used in the run manifest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cfg, err := resolveManager(cmd)
			if err != nil {
				return err
			}

			r, err := mgr.RunByID(args[0])
			if err != nil {
				return err
			}
			m, err := r.Manifest()
			if err != nil {
				return fmt.Errorf("reading manifest: %w", err)
			}

			st := m.Stage(stage)
			if st == nil {
				return fmt.Errorf("run %s declares no stage %d", r.ID(), stage)
			}

			dataDir, err := r.TrainingDataPath(stage, "")
			if err != nil {
				return err
			}
			outDir := filepath.Join(r.Root(), filepath.FromSlash(st.AdaptersPath))

			baseModel := m.BaseModel
			if stage == 2 {
				// Prefer the stage 1 merged model when it materialized.
				if merged, err := r.Resolve(1, artifact.KindFusedModel); err == nil {
					baseModel = merged
				}
			}

			params, err := trainer.ParamsFromManifest(st.TrainingParams)
			if err != nil {
				return fmt.Errorf("run %s stage %d: %w", r.ID(), stage, err)
			}
			if params.Iters == 0 {
				params.Iters = cfg.Training.Iters
			}
			if params.BatchSize == 0 {
				params.BatchSize = cfg.Training.BatchSize
			}
			if params.LearningRate == 0 {
				params.LearningRate = cfg.Training.LearningRate
			}
			if params.NumLayers == 0 {
				params.NumLayers = cfg.Training.NumLayers
			}

			sub := &trainer.SubprocessTrainer{
				Command:   cfg.Training.Command,
				ExtraArgs: cfg.Training.ExtraArgs,
			}
			job := trainer.Job{
				BaseModel:       baseModel,
				TrainingDataDir: dataDir,
				OutputDir:       outDir,
				Params:          params,
			}
			if err := sub.Train(cmd.Context(), job); err != nil {
				return err
			}

			st.TrainingParams = params.ToManifest()
			if err := r.SaveManifest(); err != nil {
				return fmt.Errorf("recording training params: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stage %d adapters written to %s\n", stage, outDir) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().IntVar(&stage, "stage", 1, "Run stage to train")

	return cmd
}
