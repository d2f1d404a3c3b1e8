package hoard

import (
	"bytes"
	"strings"
	"testing"

	"github.com/opsloop/axon/pkg/evidence"
)

func sampleRuns() []evidence.RunSummary {
	return []evidence.RunSummary{
		{RunID: "run-b", TaskID: "task-1", Outcome: evidence.OutcomeSucceeded, ChosenStrategy: "s1"},
		{RunID: "run-a", TaskID: "task-2", Outcome: evidence.OutcomeFailed, ChosenStrategy: "s2"},
	}
}

func TestListRuns_SortsByRunID(t *testing.T) {
	var buf bytes.Buffer
	if err := ListRuns(sampleRuns(), nil, OutputFormatJSONL, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstIdx := strings.Index(buf.String(), "run-a")
	secondIdx := strings.Index(buf.String(), "run-b")
	if firstIdx == -1 || secondIdx == -1 || firstIdx > secondIdx {
		t.Errorf("expected run-a before run-b, got: %s", buf.String())
	}
}

func TestListRuns_FiltersByOutcome(t *testing.T) {
	var buf bytes.Buffer
	f := &TaskFilter{Outcome: evidence.OutcomeFailed}
	if err := ListRuns(sampleRuns(), f, OutputFormatJSONL, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "run-b") {
		t.Errorf("expected succeeded run to be filtered out, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "run-a") {
		t.Errorf("expected failed run to remain, got: %s", buf.String())
	}
}

func TestListRuns_FiltersByTaskID(t *testing.T) {
	var buf bytes.Buffer
	f := &TaskFilter{TaskID: "task-1"}
	if err := ListRuns(sampleRuns(), f, OutputFormatJSONL, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "run-b") || strings.Contains(buf.String(), "run-a") {
		t.Errorf("expected only task-1's run to remain, got: %s", buf.String())
	}
}

func TestListRuns_TableFormatHandlesEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := ListRuns(nil, nil, OutputFormatTable, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "no runs found") {
		t.Errorf("expected empty-state message, got: %s", buf.String())
	}
}

func TestListRuns_RejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := ListRuns(sampleRuns(), nil, "xml", &buf); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
