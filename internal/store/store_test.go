package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/opsloop/axon/pkg/evidence"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestArtifactStore_PutGetRoundTrip(t *testing.T) {
	as, err := NewArtifactStore(filepath.Join(t.TempDir(), "artifacts"))
	if err != nil {
		t.Fatalf("failed to create artifact store: %v", err)
	}

	hash, err := as.Put([]byte("hello world"))
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := as.Get(hash)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("expected round-tripped content, got %q", got)
	}
	if !as.Has(hash) {
		t.Error("expected Has to report true for stored hash")
	}
}

func TestArtifactStore_GetMissingReturnsNotFound(t *testing.T) {
	as, err := NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create artifact store: %v", err)
	}
	_, err = as.Get("deadbeef")
	if !IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestStore_AppendAndReplayRunSummary(t *testing.T) {
	s := openTestStore(t)

	rs := &evidence.RunSummary{RunID: "run-1", TaskID: "task-1", Outcome: evidence.OutcomeSucceeded, AttemptsCount: 1}
	if err := s.AppendRunSummary(rs); err != nil {
		t.Fatalf("append run summary failed: %v", err)
	}

	runs, err := s.AllRuns()
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-1" {
		t.Fatalf("expected one replayed run, got %+v", runs)
	}

	found, err := s.RunByID("run-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found.Outcome != evidence.OutcomeSucceeded {
		t.Errorf("expected succeeded outcome, got %v", found.Outcome)
	}
}

func TestStore_AttemptsForRunFiltersByRunID(t *testing.T) {
	s := openTestStore(t)

	for _, runID := range []string{"run-a", "run-a", "run-b"} {
		a := &evidence.ExecutionAttempt{
			AttemptID: runID + "-attempt",
			RunID:     runID,
			Status:    evidence.AttemptSucceeded,
			StartedAt: time.Now(),
			EndedAt:   time.Now(),
		}
		if err := s.AppendAttempt(a); err != nil {
			t.Fatalf("append attempt failed: %v", err)
		}
	}

	attempts, err := s.AttemptsForRun("run-a")
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(attempts) != 2 {
		t.Errorf("expected 2 attempts for run-a, got %d", len(attempts))
	}
}

func TestIndex_BreakerStateRoundTrip(t *testing.T) {
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	defer idx.Close()

	now := time.Now()
	row := BreakerRow{ToolName: "mcp/fetch", State: "open", ConsecutiveFailures: 3, OpenedAt: &now}
	if err := idx.SaveBreakerState(row, now); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := idx.LoadBreakerState("mcp/fetch")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil || loaded.State != "open" || loaded.ConsecutiveFailures != 3 {
		t.Fatalf("unexpected loaded breaker state: %+v", loaded)
	}
}

func TestIndex_TopFailureHotspots(t *testing.T) {
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	defer idx.Close()

	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := idx.RecordAttemptFailure("mcp/flaky", "tool_timeout", now); err != nil {
			t.Fatalf("record failure failed: %v", err)
		}
	}
	if err := idx.RecordAttemptFailure("mcp/rare", "internal", now); err != nil {
		t.Fatalf("record failure failed: %v", err)
	}

	hotspots, err := idx.TopFailureHotspots(5)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(hotspots) == 0 || hotspots[0].ToolName != "mcp/flaky" || hotspots[0].Count != 3 {
		t.Fatalf("expected mcp/flaky to top the hotspot list, got %+v", hotspots)
	}
}
