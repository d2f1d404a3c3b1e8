package hoard

import (
	"fmt"
	"io"

	"github.com/opsloop/axon/pkg/evidence"
)

// RunLookup resolves a run id to its summary.
type RunLookup func(runID string) (*evidence.RunSummary, error)

// AttemptsLookup resolves a run id to its execution attempts.
type AttemptsLookup func(runID string) ([]evidence.ExecutionAttempt, error)

// GetRun writes a single run's summary and attempts as pretty JSON to w.
func GetRun(runID string, lookupRun RunLookup, lookupAttempts AttemptsLookup, w io.Writer) error {
	summary, err := lookupRun(runID)
	if err != nil {
		return &RunNotFoundError{RunID: runID}
	}
	attempts, err := lookupAttempts(runID)
	if err != nil {
		return fmt.Errorf("failed to fetch attempts for run %s: %w", runID, err)
	}

	return FormatSingleJSON(w, struct {
		Summary  *evidence.RunSummary        `json:"summary"`
		Attempts []evidence.ExecutionAttempt `json:"attempts"`
	}{summary, attempts})
}

// RunNotFoundError indicates no run matched the given id.
type RunNotFoundError struct {
	RunID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run %q not found", e.RunID)
}

// IsNotFound reports whether err is a RunNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*RunNotFoundError)
	return ok
}
