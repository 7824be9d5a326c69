package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntune/vulntune/internal/projectconfig"
	"github.com/vulntune/vulntune/internal/run"
)

// resolveConfig loads .vulntune.yaml from the current directory upward.
func resolveConfig() (*projectconfig.ProjectConfig, error) {
	cfg, err := projectconfig.Load(".")
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}
	return cfg, nil
}

// resolveManager builds a run manager from project config, honoring the
// --runs-dir flag when set.
func resolveManager(cmd *cobra.Command) (*run.Manager, *projectconfig.ProjectConfig, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, nil, err
	}

	runsDir, _ := cmd.Flags().GetString("runs-dir")
	if runsDir == "" {
		runsDir = cfg.Paths.Runs
	}

	mgr := run.NewManager(runsDir,
		run.WithPrefix(cfg.Runs.Prefix),
		run.WithBaseModel(cfg.Runs.BaseModel),
	)
	return mgr, cfg, nil
}
