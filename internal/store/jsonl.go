// Package store implements the durable state store and evidence trail
// (§4.7): append-only JSON Lines event logs as the system of record,
// content-addressed artifact storage, and a small relational index for
// latest-per-key lookups and circuit breaker state, backed by
// modernc.org/sqlite.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// EventLog is a single append-only JSON Lines file. Writers are
// mutex-serialized within a process; readers may Iterate concurrently with a
// writer since each write is a single buffered, flushed append.
type EventLog struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// OpenEventLog opens (creating if necessary) the JSONL file at path for
// appending.
func OpenEventLog(path string) (*EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
	}
	return &EventLog{path: path, f: f}, nil
}

// Append marshals v to JSON and writes it as one line, flushing immediately
// so a crash never loses more than the in-flight write.
func (l *EventLog) Append(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := l.f.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("failed to append event to %s: %w", l.path, err)
	}
	return l.f.Sync()
}

// Close closes the underlying file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// Iterate reads every line of the log in append order, decoding each into a
// fresh T and invoking fn. Iteration stops at the first error returned by fn.
func Iterate[T any](path string, fn func(T) error) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open event log %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return fmt.Errorf("%s:%d: malformed event: %w", path, lineNo, err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ReadAll loads every decoded record from the log in append order.
func ReadAll[T any](path string) ([]T, error) {
	var out []T
	err := Iterate(path, func(v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}
