package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vulntune",
		Short: "Vulntune - manage two-stage LoRA fine-tuning runs",
		Long: `Vulntune manages the artifacts of a two-stage LoRA fine-tuning
pipeline for vulnerability-detection models.

It creates training run directories with a declared layout, tracks what
each stage produced in a run manifest, validates artifacts on access,
converts MLX adapters to the PEFT layout, and cleans up failed runs.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("runs-dir", "", "Directory holding training runs (default from .vulntune.yaml)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newNewCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newLatestCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newTrainCommand())
	cmd.AddCommand(newStatsCommand())
	cmd.AddCommand(newConvertCommand())
	cmd.AddCommand(newCleanupCommand())
	cmd.AddCommand(newSnapshotCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
