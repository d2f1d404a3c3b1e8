package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsloop/axon/internal/app"
	"github.com/opsloop/axon/internal/filter"
	"github.com/opsloop/axon/internal/hoard"
	"github.com/opsloop/axon/internal/printer"
	"github.com/opsloop/axon/pkg/evidence"
)

var (
	inspectTaskID  string
	inspectOutcome string
	inspectFormat  string
	inspectKind    string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [run_id]",
	Short: "Inspect recorded runs",
	Long: `Inspect recorded runs in list or get mode.

List Mode (no run_id):
  Shows every run as a table or JSONL stream, optionally filtered by
  --task-id or --outcome.

Get Mode (with run_id):
  Shows one run's summary plus every attempt it made.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectTaskID, "task-id", "", "list mode: filter to one task")
	inspectCmd.Flags().StringVar(&inspectOutcome, "outcome", "", "list mode: filter by outcome (succeeded, degraded, failed, aborted, clarification_needed)")
	inspectCmd.Flags().StringVarP(&inspectFormat, "output", "o", "table", "list mode output format: table or jsonl")
	inspectCmd.Flags().StringVar(&inspectKind, "kind", "", "get mode: only show artifacts whose kind matches this glob")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		runID, err := resolveRunID(a, args[0])
		if err != nil {
			return friendlyResolveErr(err, args[0])
		}

		if inspectKind == "" {
			err := hoard.GetRun(runID, a.Store.RunByID, a.Store.AttemptsForRun, os.Stdout)
			if err != nil {
				if hoard.IsNotFound(err) {
					return printer.Error(
						fmt.Sprintf("run %q not found", runID),
						"No run with that ID has been recorded.",
						[]string{"List all runs:\n  axon inspect"},
					)
				}
				return err
			}
			return nil
		}

		return getRunFilteredByKind(a, runID)
	}

	runs, err := a.Store.AllRuns()
	if err != nil {
		return fmt.Errorf("failed to load runs: %w", err)
	}

	var format hoard.OutputFormat
	switch inspectFormat {
	case "table":
		format = hoard.OutputFormatTable
	case "jsonl":
		format = hoard.OutputFormatJSONL
	default:
		return printer.Error("invalid output format", fmt.Sprintf("unknown format: %s", inspectFormat), []string{"Valid formats: table, jsonl"})
	}

	return hoard.ListRuns(runs, &hoard.TaskFilter{TaskID: inspectTaskID, Outcome: evidence.Outcome(inspectOutcome)}, format, os.Stdout)
}

// getRunFilteredByKind prints a run's summary and attempts with each
// attempt's artifacts narrowed to those matching --kind.
func getRunFilteredByKind(a *app.App, runID string) error {
	summary, err := a.Store.RunByID(runID)
	if err != nil {
		return printer.Error(fmt.Sprintf("run %q not found", runID), "No run with that ID has been recorded.", nil)
	}
	attempts, err := a.Store.AttemptsForRun(runID)
	if err != nil {
		return fmt.Errorf("failed to fetch attempts for run %s: %w", runID, err)
	}

	crit := &filter.Criteria{KindGlob: inspectKind}
	filtered := make([]evidence.ExecutionAttempt, len(attempts))
	for i, at := range attempts {
		filtered[i] = at
		var kept []evidence.ArtifactRef
		for _, art := range at.Artifacts {
			if crit.Matches(&art, at.StartedAt.UnixMilli()) {
				kept = append(kept, art)
			}
		}
		filtered[i].Artifacts = kept
	}

	return hoard.FormatSingleJSON(os.Stdout, struct {
		Summary  *evidence.RunSummary        `json:"summary"`
		Attempts []evidence.ExecutionAttempt `json:"attempts"`
	}{summary, filtered})
}
