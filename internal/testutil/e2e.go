//go:build integration

// Package testutil provides integration-test scaffolding, adapted from the
// teacher's git-workspace E2E harness to axon's filesystem-rooted store: an
// isolated temp directory standing in for a project root, with helpers to
// drive a kernel end-to-end and assert on what landed in the store.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsloop/axon/internal/store"
)

// E2EEnvironment is an isolated axon project root for integration tests.
type E2EEnvironment struct {
	T       *testing.T
	RootDir string
	Store   *store.Store
	Ctx     context.Context
}

// SetupE2EEnvironment creates a temp directory, opens a Store rooted there,
// and registers cleanup.
func SetupE2EEnvironment(t *testing.T) *E2EEnvironment {
	rootDir := t.TempDir()

	st, err := store.Open(rootDir)
	require.NoError(t, err, "failed to open store")

	env := &E2EEnvironment{
		T:       t,
		RootDir: rootDir,
		Store:   st,
		Ctx:     context.Background(),
	}
	t.Cleanup(func() { _ = st.Close() })

	return env
}

// WaitForRunTerminal polls the store until runID reaches a terminal outcome
// or timeout elapses.
func (env *E2EEnvironment) WaitForRunTerminal(runID string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		summary, err := env.Store.RunByID(runID)
		if err == nil && summary != nil {
			env.T.Logf("run %s reached outcome %s", runID, summary.Outcome)
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	require.Fail(env.T, fmt.Sprintf("run %s did not reach a terminal outcome within %v", runID, timeout))
}

// VerifyArtifactExists asserts that an artifact with the given sha256 exists
// in the environment's artifact store.
func (env *E2EEnvironment) VerifyArtifactExists(sha256Hex string) {
	require.True(env.T, env.Store.Artifacts().Has(sha256Hex), "expected artifact %s to exist", sha256Hex)
}

// GetProjectRoot walks up from the current working directory to find the
// module root (the directory containing go.mod).
func GetProjectRoot() string {
	root, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return root
		}
		parent := filepath.Dir(root)
		if parent == root {
			return "."
		}
		root = parent
	}
}
