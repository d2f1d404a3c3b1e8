package hoard

import (
	"bytes"
	"strings"
	"testing"

	"github.com/opsloop/axon/pkg/evidence"
)

func TestGetRun_WritesSummaryAndAttempts(t *testing.T) {
	var buf bytes.Buffer
	err := GetRun("run-1",
		func(runID string) (*evidence.RunSummary, error) {
			return &evidence.RunSummary{RunID: runID, Outcome: evidence.OutcomeSucceeded}, nil
		},
		func(runID string) ([]evidence.ExecutionAttempt, error) {
			return []evidence.ExecutionAttempt{{AttemptID: "a1", RunID: runID}}, nil
		},
		&buf,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "run-1") || !strings.Contains(buf.String(), "a1") {
		t.Errorf("expected output to contain run and attempt ids, got %s", buf.String())
	}
}

func TestGetRun_ReturnsNotFoundError(t *testing.T) {
	var buf bytes.Buffer
	err := GetRun("missing",
		func(runID string) (*evidence.RunSummary, error) { return nil, errNotFound },
		func(runID string) ([]evidence.ExecutionAttempt, error) { return nil, nil },
		&buf,
	)
	if !IsNotFound(err) {
		t.Fatalf("expected RunNotFoundError, got %v", err)
	}
}

var errNotFound = &RunNotFoundError{RunID: "missing"}
