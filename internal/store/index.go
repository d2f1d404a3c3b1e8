package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Index is a small relational query surface over the JSONL system of record:
// latest-run-per-task lookups, failure hotspot aggregation, and persisted
// circuit breaker state that must survive process restarts. It is a
// derived, rebuildable cache — the JSONL logs remain authoritative.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if necessary) the sqlite index database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index db at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one handle

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			profile TEXT NOT NULL,
			outcome TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_task_id ON runs(task_id)`,
		`CREATE TABLE IF NOT EXISTS attempt_failures (
			tool_name TEXT NOT NULL,
			error_code TEXT NOT NULL,
			occurred_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_tool ON attempt_failures(tool_name)`,
		`CREATE TABLE IF NOT EXISTS breaker_state (
			tool_name TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			opened_at TEXT,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := idx.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration %q: %w", stmt, err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// RecordRunStarted inserts or updates the run's started_at row.
func (idx *Index) RecordRunStarted(runID, taskID, profile string, startedAt time.Time) error {
	_, err := idx.db.Exec(
		`INSERT INTO runs (run_id, task_id, profile, started_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET task_id=excluded.task_id, profile=excluded.profile, started_at=excluded.started_at`,
		runID, taskID, profile, startedAt.Format(time.RFC3339Nano))
	return err
}

// RecordRunFinished updates a run row with its terminal outcome.
func (idx *Index) RecordRunFinished(runID, outcome string, finishedAt time.Time) error {
	_, err := idx.db.Exec(
		`UPDATE runs SET outcome = ?, finished_at = ? WHERE run_id = ?`,
		outcome, finishedAt.Format(time.RFC3339Nano), runID)
	return err
}

// LatestRunForTask returns the run_id of the most recently started run for
// the given task, or "" if none exists.
func (idx *Index) LatestRunForTask(taskID string) (string, error) {
	var runID string
	err := idx.db.QueryRow(
		`SELECT run_id FROM runs WHERE task_id = ? ORDER BY started_at DESC LIMIT 1`, taskID,
	).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return runID, err
}

// RecordAttemptFailure appends a failure hotspot sample.
func (idx *Index) RecordAttemptFailure(toolName, errorCode string, occurredAt time.Time) error {
	_, err := idx.db.Exec(
		`INSERT INTO attempt_failures (tool_name, error_code, occurred_at) VALUES (?, ?, ?)`,
		toolName, errorCode, occurredAt.Format(time.RFC3339Nano))
	return err
}

// FailureHotspot summarizes failure counts for one tool.
type FailureHotspot struct {
	ToolName string
	Count    int
}

// TopFailureHotspots returns the tools with the most recorded failures,
// most-failing first, capped at limit.
func (idx *Index) TopFailureHotspots(limit int) ([]FailureHotspot, error) {
	rows, err := idx.db.Query(
		`SELECT tool_name, COUNT(*) as c FROM attempt_failures GROUP BY tool_name ORDER BY c DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FailureHotspot
	for rows.Next() {
		var h FailureHotspot
		if err := rows.Scan(&h.ToolName, &h.Count); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// BreakerRow is the persisted state of one tool's circuit breaker.
type BreakerRow struct {
	ToolName            string
	State               string
	ConsecutiveFailures int
	OpenedAt            *time.Time
}

// SaveBreakerState upserts the persisted circuit breaker state for a tool.
func (idx *Index) SaveBreakerState(row BreakerRow, updatedAt time.Time) error {
	var openedAt any
	if row.OpenedAt != nil {
		openedAt = row.OpenedAt.Format(time.RFC3339Nano)
	}
	_, err := idx.db.Exec(
		`INSERT INTO breaker_state (tool_name, state, consecutive_failures, opened_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tool_name) DO UPDATE SET state=excluded.state, consecutive_failures=excluded.consecutive_failures,
			opened_at=excluded.opened_at, updated_at=excluded.updated_at`,
		row.ToolName, row.State, row.ConsecutiveFailures, openedAt, updatedAt.Format(time.RFC3339Nano))
	return err
}

// LoadBreakerState reads back the persisted state for a tool, if any.
func (idx *Index) LoadBreakerState(toolName string) (*BreakerRow, error) {
	var row BreakerRow
	var openedAt sql.NullString
	err := idx.db.QueryRow(
		`SELECT tool_name, state, consecutive_failures, opened_at FROM breaker_state WHERE tool_name = ?`, toolName,
	).Scan(&row.ToolName, &row.State, &row.ConsecutiveFailures, &openedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if openedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, openedAt.String)
		if err == nil {
			row.OpenedAt = &t
		}
	}
	return &row, nil
}

// LoadAllBreakerState returns the persisted state for every tool, used to
// warm the in-memory breaker registry on startup.
func (idx *Index) LoadAllBreakerState() ([]BreakerRow, error) {
	rows, err := idx.db.Query(`SELECT tool_name, state, consecutive_failures, opened_at FROM breaker_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BreakerRow
	for rows.Next() {
		var row BreakerRow
		var openedAt sql.NullString
		if err := rows.Scan(&row.ToolName, &row.State, &row.ConsecutiveFailures, &openedAt); err != nil {
			return nil, err
		}
		if openedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, openedAt.String)
			if err == nil {
				row.OpenedAt = &t
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
