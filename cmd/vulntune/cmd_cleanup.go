package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vulntune/vulntune/internal/archive"
	"github.com/vulntune/vulntune/internal/projectconfig"
	"github.com/vulntune/vulntune/internal/run"
)

func newCleanupCommand() *cobra.Command {
	var (
		dryRun      bool
		archiveRuns bool
		yes         bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete training runs that never completed",
		Long: `Delete every run directory whose final model never materialized,
including runs with corrupt or missing manifests. Completed runs are
never touched.

Deletion is irreversible. Use --dry-run to preview, --archive to
snapshot each run to object storage first. Without --yes an
interactive confirmation is required; in non-interactive environments
the command aborts instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, cfg, err := resolveManager(cmd)
			if err != nil {
				return err
			}

			opts := run.CleanupOptions{DryRun: dryRun}

			if archiveRuns && !dryRun {
				archiver, err := buildArchiver(cfg)
				if err != nil {
					return err
				}
				opts.Archiver = archiver
			}

			if !dryRun && !yes {
				question := fmt.Sprintf("Delete all incomplete runs under %s?", mgr.Root())
				if !promptConfirm(cmd.InOrStdin(), cmd.OutOrStdout(), question) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.") //nolint:errcheck
					return nil
				}
			}

			removed, err := mgr.CleanupFailedRuns(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if dryRun {
				if len(removed) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to delete.") //nolint:errcheck
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Would delete:") //nolint:errcheck
				for _, id := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id) //nolint:errcheck
				}
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s)\n", len(removed)) //nolint:errcheck
			for _, id := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id) //nolint:errcheck
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be deleted without deleting")
	cmd.Flags().BoolVar(&archiveRuns, "archive", false, "Snapshot each run to object storage before deleting")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// buildArchiver connects to the configured object storage endpoint.
// Credentials come from S3_ACCESS_KEY and S3_SECRET_KEY.
func buildArchiver(cfg *projectconfig.ProjectConfig) (*archive.Archiver, error) {
	if cfg.Archive.Endpoint == "" {
		return nil, fmt.Errorf("archiving requires archive.endpoint in .vulntune.yaml")
	}
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("archiving requires S3_ACCESS_KEY and S3_SECRET_KEY in the environment")
	}

	useSSL := cfg.Archive.UseSSL == nil || *cfg.Archive.UseSSL
	client, err := archive.NewClient(cfg.Archive.Endpoint, accessKey, secretKey, useSSL)
	if err != nil {
		return nil, err
	}
	return &archive.Archiver{
		Uploader: client,
		Bucket:   cfg.Archive.Bucket,
		Prefix:   cfg.Archive.Prefix,
	}, nil
}
