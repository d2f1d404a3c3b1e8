package hoard

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/opsloop/axon/pkg/evidence"
)

// FormatRunsTable renders runs as a table: run id, task id, outcome, chosen
// strategy, attempt count, and total latency.
func FormatRunsTable(w io.Writer, runs []evidence.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs found")
		return
	}

	table := tablewriter.NewTable(w)
	table.Header([]string{"RUN", "TASK", "OUTCOME", "STRATEGY", "ATTEMPTS", "LATENCY_MS"})
	for _, r := range runs {
		table.Append([]string{
			formatID(r.RunID),
			formatID(r.TaskID),
			string(r.Outcome),
			formatStrategy(r.ChosenStrategy),
			fmt.Sprintf("%d", r.AttemptsCount),
			fmt.Sprintf("%d", r.TotalLatencyMs),
		})
	}
	table.Render()
	fmt.Fprintf(w, "\n%d run(s)\n", len(runs))
}

// FormatSingleJSON writes v as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatStrategy(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
