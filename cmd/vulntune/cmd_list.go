package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	runewidth "github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/vulntune/vulntune/internal/run"
)

type runRow struct {
	RunID     string `json:"runId"`
	Timestamp string `json:"timestamp"`
	BaseModel string `json:"baseModel"`
	Stages    string `json:"stages"`
	Completed bool   `json:"completed"`
}

func newListCommand() *cobra.Command {
	var format string
	var completedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List training runs, newest first",
		Long: `List the training runs under the runs directory, sorted by manifest
timestamp with the newest first. Runs whose manifest cannot be read are
skipped with a warning rather than failing the listing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := resolveManager(cmd)
			if err != nil {
				return err
			}

			var filter func(*run.TrainingRun) bool
			if completedOnly {
				filter = (*run.TrainingRun).Completed
			}

			runs, err := mgr.ListRuns(filter)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}

			// ListRuns sorts oldest first; show newest first.
			rows := make([]runRow, 0, len(runs))
			for i := len(runs) - 1; i >= 0; i-- {
				r := runs[i]
				m, err := r.Manifest()
				if err != nil {
					continue
				}
				stages := stageSummary(m.Stage1 != nil, m.Stage2 != nil)
				rows = append(rows, runRow{
					RunID:     m.RunID,
					Timestamp: m.Timestamp,
					BaseModel: m.BaseModel,
					Stages:    stages,
					Completed: r.Completed(),
				})
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			printRunTable(cmd.OutOrStdout(), rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Show only completed runs")

	return cmd
}

func stageSummary(s1, s2 bool) string {
	switch {
	case s1 && s2:
		return "1+2"
	case s1:
		return "1"
	case s2:
		return "2"
	default:
		return "-"
	}
}

func printRunTable(w io.Writer, rows []runRow) {
	const maxModelWidth = 40
	const minIDWidth = 10

	idWidth := len("Run")
	modelWidth := len("Base model")
	for _, r := range rows {
		if n := utf8.RuneCountInString(r.RunID); n > idWidth {
			idWidth = n
		}
		if n := utf8.RuneCountInString(r.BaseModel); n > modelWidth {
			modelWidth = n
		}
	}
	if idWidth < minIDWidth {
		idWidth = minIDWidth
	}
	if modelWidth > maxModelWidth {
		modelWidth = maxModelWidth
	}

	const colTimestamp = 20
	const colStages = 6

	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", //nolint:errcheck
		padRight("Run", idWidth),
		padRight("Timestamp", colTimestamp),
		padRight("Stages", colStages),
		padRight("Base model", modelWidth),
		"Done")
	totalWidth := idWidth + colTimestamp + colStages + modelWidth + 4 + 8
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", totalWidth)) //nolint:errcheck

	for _, r := range rows {
		done := "no"
		if r.Completed {
			done = "yes"
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n", //nolint:errcheck
			padRight(truncateName(r.RunID, idWidth), idWidth),
			padRight(r.Timestamp, colTimestamp),
			padRight(r.Stages, colStages),
			padRight(truncateName(r.BaseModel, modelWidth), modelWidth),
			done)
	}
}

// truncateName shortens a name to maxLen runes, replacing the last rune with "…" if needed.
func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	return string(runes[:maxLen-1]) + "…"
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
