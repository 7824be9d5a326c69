package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vulntune/vulntune/internal/artifact"
	"github.com/vulntune/vulntune/internal/run"
)

type artifactCheck struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"` // ok, missing, invalid, undeclared
	Path    string   `json:"path,omitempty"`
	Problem string   `json:"problem,omitempty"`
	Missing []string `json:"missing,omitempty"`
	Empty   []string `json:"empty,omitempty"`
}

func newCheckCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "check <run-id>",
		Short: "Validate a run's artifacts against its manifest",
		Long: `Validate every artifact the run's manifest declares: stage adapters,
merged models, evaluation results, and the final model. Each path is
checked against the required-file set for its artifact kind.

Exits 1 if any declared artifact is missing or structurally invalid.`,
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
			if _, err := r.Manifest(); err != nil {
				return fmt.Errorf("reading manifest: %w", err)
			}

			checks := checkRunArtifacts(r)

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(checks); err != nil {
					return err
				}
			} else {
				printCheckTable(cmd.OutOrStdout(), r.ID(), checks)
			}

			for _, c := range checks {
				if c.Status == "missing" || c.Status == "invalid" {
					return &ArtifactInvalidError{Message: fmt.Sprintf("run %s has invalid artifacts", r.ID())}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

// checkRunArtifacts probes every artifact the manifest declares. Artifacts
// a stage never declared are reported as undeclared, not as failures.
func checkRunArtifacts(r *run.TrainingRun) []artifactCheck {
	var checks []artifactCheck

	for stage := 1; stage <= 2; stage++ {
		checks = append(checks,
			toCheck(fmt.Sprintf("stage%d adapters", stage), func() (string, error) {
				return r.Resolve(stage, artifact.KindLoRAAdapter)
			}),
			toCheck(fmt.Sprintf("stage%d merged model", stage), func() (string, error) {
				return r.Resolve(stage, artifact.KindFusedModel)
			}),
			toCheck(fmt.Sprintf("stage%d eval results", stage), func() (string, error) {
				return r.EvaluationResultsPath(stage)
			}),
		)
	}
	checks = append(checks, toCheck("final model", r.FinalModelPath))
	return checks
}

func toCheck(name string, resolve func() (string, error)) artifactCheck {
	path, err := resolve()
	if err == nil {
		return artifactCheck{Name: name, Status: "ok", Path: path}
	}

	var missingStage *run.MissingStageError
	if errors.As(err, &missingStage) {
		return artifactCheck{Name: name, Status: "undeclared"}
	}

	var validation *run.ValidationError
	if errors.As(err, &validation) {
		status := "missing"
		if len(validation.Empty) > 0 {
			status = "invalid"
		}
		return artifactCheck{
			Name:    name,
			Status:  status,
			Path:    validation.Dir,
			Missing: validation.Missing,
			Empty:   validation.Empty,
		}
	}

	return artifactCheck{Name: name, Status: "invalid", Problem: err.Error()}
}

func printCheckTable(w io.Writer, runID string, checks []artifactCheck) {
	fmt.Fprintf(w, "Artifacts for %s\n", runID) //nolint:errcheck

	nameWidth := len("Artifact")
	for _, c := range checks {
		if len(c.Name) > nameWidth {
			nameWidth = len(c.Name)
		}
	}

	const colStatus = 12
	fmt.Fprintf(w, "%s  %s  %s\n", //nolint:errcheck
		padRight("Artifact", nameWidth), padRight("Status", colStatus), "Detail")
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", nameWidth+colStatus+24)) //nolint:errcheck

	for _, c := range checks {
		var parts []string
		if len(c.Missing) > 0 {
			parts = append(parts, "missing: "+strings.Join(c.Missing, ", "))
		}
		if len(c.Empty) > 0 {
			parts = append(parts, "empty: "+strings.Join(c.Empty, ", "))
		}
		if c.Problem != "" {
			parts = append(parts, c.Problem)
		}
		detail := c.Path
		if len(parts) > 0 {
			detail = strings.Join(parts, "; ")
		}
		fmt.Fprintf(w, "%s  %s  %s\n", //nolint:errcheck
			padRight(c.Name, nameWidth), padRight(c.Status, colStatus), detail)
	}
}
