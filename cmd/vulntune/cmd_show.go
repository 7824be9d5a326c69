package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a run's manifest",
		Args:  cobra.ExactArgs(1),
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

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		},
	}
	return cmd
}
