package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntune/vulntune/internal/findings"
)

func newStatsCommand() *cobra.Command {
	var (
		stage        int
		findingsFile string
	)

	cmd := &cobra.Command{
		Use:   "stats <run-id>",
		Short: "Record dataset statistics for a run stage",
		Long: `Read a normalized findings JSONL file and record its statistics
(finding counts by severity and by tool) in the stage's manifest entry.
Later listings and audits then show what the stage was trained on
without re-reading the dataset.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := resolveManager(cmd)
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

			fs, err := findings.ReadJSONL(findingsFile)
			if err != nil {
				return fmt.Errorf("reading findings: %w", err)
			}

			st.DatasetStats = findings.DatasetStats(fs)
			if err := r.SaveManifest(); err != nil {
				return fmt.Errorf("recording dataset stats: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st.DatasetStats)
		},
	}

	cmd.Flags().IntVar(&stage, "stage", 1, "Run stage to record stats for")
	cmd.Flags().StringVarP(&findingsFile, "findings", "f", "", "Normalized findings JSONL file")
	_ = cmd.MarkFlagRequired("findings") //nolint:errcheck

	return cmd
}
