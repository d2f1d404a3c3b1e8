package store

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/opsloop/axon/pkg/evidence"
)

// Store is the durable evidence trail for one axon root: append-only JSONL
// logs (system of record), content-addressed artifacts, and a derived
// sqlite index for point lookups. Nothing here is namespaced by Redis root
// name — that concern belongs to pkg/evidence.LiveBus, which fans this same
// data out live.
type Store struct {
	root      string
	runs      *EventLog
	attempts  *EventLog
	feedback  *EventLog
	overrides *EventLog
	artifacts *ArtifactStore
	index     *Index
}

// Open opens or creates the on-disk layout under root:
//
//	root/logs/runs.jsonl
//	root/logs/attempts.jsonl
//	root/logs/feedback.jsonl
//	root/logs/overrides.jsonl
//	root/artifacts/<xx>/<hash>
//	root/index.sqlite
func Open(root string) (*Store, error) {
	logs := filepath.Join(root, "logs")

	runs, err := OpenEventLog(filepath.Join(logs, "runs.jsonl"))
	if err != nil {
		return nil, err
	}
	attempts, err := OpenEventLog(filepath.Join(logs, "attempts.jsonl"))
	if err != nil {
		return nil, err
	}
	feedback, err := OpenEventLog(filepath.Join(logs, "feedback.jsonl"))
	if err != nil {
		return nil, err
	}
	overrides, err := OpenEventLog(filepath.Join(logs, "overrides.jsonl"))
	if err != nil {
		return nil, err
	}
	artifacts, err := NewArtifactStore(filepath.Join(root, "artifacts"))
	if err != nil {
		return nil, err
	}
	index, err := OpenIndex(filepath.Join(root, "index.sqlite"))
	if err != nil {
		return nil, err
	}

	return &Store{
		root:      root,
		runs:      runs,
		attempts:  attempts,
		feedback:  feedback,
		overrides: overrides,
		artifacts: artifacts,
		index:     index,
	}, nil
}

// Close closes every open log and the index database.
func (s *Store) Close() error {
	for _, err := range []error{s.runs.Close(), s.attempts.Close(), s.feedback.Close(), s.overrides.Close(), s.index.Close()} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Artifacts exposes the content-addressed artifact store, e.g. for the
// registry to persist a DeliveryBundle's content before recording its
// ArtifactRef in the attempts log.
func (s *Store) Artifacts() *ArtifactStore { return s.artifacts }

// Index exposes the derived sqlite query surface, e.g. for the diagnostics
// package to compute failure hotspots.
func (s *Store) Index() *Index { return s.index }

// AppendRunSummary durably records a finished run and mirrors its outcome
// into the index for latest-per-task lookups.
func (s *Store) AppendRunSummary(rs *evidence.RunSummary) error {
	if err := s.runs.Append(rs); err != nil {
		return err
	}
	return s.index.RecordRunFinished(rs.RunID, string(rs.Outcome), time.Now())
}

// RecordRunStart indexes a run's start without writing to the JSONL log —
// the log entry is written once, at completion, by AppendRunSummary; the
// index entry exists earlier so `axon status` can show in-flight runs.
func (s *Store) RecordRunStart(runID, taskID, profile string) error {
	return s.index.RecordRunStarted(runID, taskID, profile, time.Now())
}

// AppendAttempt durably records one execution attempt and, on failure,
// indexes it as a failure hotspot sample.
func (s *Store) AppendAttempt(a *evidence.ExecutionAttempt) error {
	if err := s.attempts.Append(a); err != nil {
		return err
	}
	if a.Status == evidence.AttemptFailed && a.ErrorKind != "" {
		return s.index.RecordAttemptFailure(a.StrategyID, a.ErrorKind, a.EndedAt)
	}
	return nil
}

// AppendFeedback durably records an operator feedback record.
func (s *Store) AppendFeedback(f *evidence.FeedbackRecord) error {
	return s.feedback.Append(f)
}

// AppendOverride durably records a policy override applied by the tuner or
// an operator.
func (s *Store) AppendOverride(o *evidence.PolicyOverride) error {
	return s.overrides.Append(o)
}

// AllRuns replays the full run history.
func (s *Store) AllRuns() ([]evidence.RunSummary, error) {
	return ReadAll[evidence.RunSummary](filepath.Join(s.root, "logs", "runs.jsonl"))
}

// AllAttempts replays the full attempt history.
func (s *Store) AllAttempts() ([]evidence.ExecutionAttempt, error) {
	return ReadAll[evidence.ExecutionAttempt](filepath.Join(s.root, "logs", "attempts.jsonl"))
}

// AllFeedback replays the full feedback history.
func (s *Store) AllFeedback() ([]evidence.FeedbackRecord, error) {
	return ReadAll[evidence.FeedbackRecord](filepath.Join(s.root, "logs", "feedback.jsonl"))
}

// AllOverrides replays the full override history.
func (s *Store) AllOverrides() ([]evidence.PolicyOverride, error) {
	return ReadAll[evidence.PolicyOverride](filepath.Join(s.root, "logs", "overrides.jsonl"))
}

// AttemptsForRun filters the attempt log down to one run, in append order.
func (s *Store) AttemptsForRun(runID string) ([]evidence.ExecutionAttempt, error) {
	all, err := s.AllAttempts()
	if err != nil {
		return nil, err
	}
	var out []evidence.ExecutionAttempt
	for _, a := range all {
		if a.RunID == runID {
			out = append(out, a)
		}
	}
	return out, nil
}

// RunByID finds a single run summary by ID, replaying the log.
func (s *Store) RunByID(runID string) (*evidence.RunSummary, error) {
	runs, err := s.AllRuns()
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].RunID == runID {
			return &runs[i], nil
		}
	}
	return nil, fmt.Errorf("run %s not found", runID)
}
