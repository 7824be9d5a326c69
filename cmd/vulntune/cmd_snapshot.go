package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot <run-id>...",
		Short: "Archive runs to object storage",
		Long: `Pack each named run directory into a zstd-compressed tar archive and
upload it to the configured S3-compatible bucket. Runs are archived
concurrently; the first failure aborts the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cfg, err := resolveManager(cmd)
			if err != nil {
				return err
			}

			archiver, err := buildArchiver(cfg)
			if err != nil {
				return err
			}

			dirs := make([]string, 0, len(args))
			for _, id := range args {
				r, err := mgr.RunByID(id)
				if err != nil {
					return err
				}
				dirs = append(dirs, r.Root())
			}

			keys, err := archiver.SnapshotAll(cmd.Context(), dirs)
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", key) //nolint:errcheck
			}
			return nil
		},
	}
	return cmd
}
