// Package hoard renders run summaries and artifacts for `axon inspect`,
// adapted from the teacher's artefact list/get/
// format trio to axon's RunSummary/ArtifactRef shapes and upgraded to
// render tables with github.com/olekukonko/tablewriter instead of
// hand-built column padding.
package hoard

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/opsloop/axon/pkg/evidence"
)

// OutputFormat selects how ListRuns renders its result.
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSONL OutputFormat = "jsonl"
)

// TaskFilter narrows ListRuns to a single task and/or outcome. Zero values
// mean "no filter" for that field.
type TaskFilter struct {
	TaskID  string
	Outcome evidence.Outcome
}

func (f *TaskFilter) matches(r *evidence.RunSummary) bool {
	if f == nil {
		return true
	}
	if f.TaskID != "" && r.TaskID != f.TaskID {
		return false
	}
	if f.Outcome != "" && r.Outcome != f.Outcome {
		return false
	}
	return true
}

// ListRuns filters and sorts runs, then renders them in the requested
// format.
func ListRuns(runs []evidence.RunSummary, f *TaskFilter, format OutputFormat, w io.Writer) error {
	filtered := make([]evidence.RunSummary, 0, len(runs))
	for i := range runs {
		if f.matches(&runs[i]) {
			filtered = append(filtered, runs[i])
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].RunID < filtered[j].RunID })

	switch format {
	case OutputFormatTable, "":
		FormatRunsTable(w, filtered)
	case OutputFormatJSONL:
		return FormatJSONL(w, filtered)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}

// FormatJSONL writes one JSON object per line, one per run.
func FormatJSONL(w io.Writer, runs []evidence.RunSummary) error {
	enc := json.NewEncoder(w)
	for _, r := range runs {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode run %s: %w", r.RunID, err)
		}
	}
	return nil
}
