package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vulntune/vulntune/internal/artifact"
	"github.com/vulntune/vulntune/internal/peft"
)

func newConvertCommand() *cobra.Command {
	var (
		stage       int
		outDir      string
		baseModel   string
		passthrough bool
	)

	cmd := &cobra.Command{
		Use:   "convert <run-id>",
		Short: "Convert a run's MLX adapter to the PEFT layout",
		Long: `Convert the MLX-trained adapter of a run stage into the PEFT layout
expected by Hugging Face tooling. Tensor bytes are copied unchanged;
only names and configuration are rewritten.

With --passthrough, a run that never produced an adapter is not an
error: the source directory path is printed unchanged so publishing
can proceed with whatever the stage left behind.`,
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
			srcDir := filepath.Join(r.Root(), filepath.FromSlash(st.AdaptersPath))

			if outDir == "" {
				outDir = filepath.Join(r.Root(), fmt.Sprintf("stage%d", stage), "peft-adapter")
			}
			if baseModel == "" {
				baseModel = m.BaseModel
			}

			conv := &peft.Converter{Mappings: cfg.Convert.HubMappings}

			if passthrough {
				publishDir, err := conv.ConvertOrPassthrough(srcDir, outDir, baseModel)
				if err != nil {
					return err
				}
				if publishDir == srcDir {
					fmt.Fprintf(cmd.OutOrStdout(), "No adapter at %s, publishing source as-is\n", srcDir) //nolint:errcheck
				}
				fmt.Fprintln(cmd.OutOrStdout(), publishDir) //nolint:errcheck
				return nil
			}

			if err := conv.Convert(srcDir, outDir, baseModel); err != nil {
				return err
			}
			for _, name := range artifact.RequiredFiles(artifact.KindPEFTAdapter) {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", filepath.Join(outDir, name)) //nolint:errcheck
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Converted adapter written to %s\n", outDir) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().IntVar(&stage, "stage", 2, "Run stage whose adapter to convert")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default <run>/stage<N>/peft-adapter)")
	cmd.Flags().StringVar(&baseModel, "base-model", "", "Base model path or id (default from the run manifest)")
	cmd.Flags().BoolVar(&passthrough, "passthrough", false, "Return the source directory unchanged when no adapter exists")

	return cmd
}
