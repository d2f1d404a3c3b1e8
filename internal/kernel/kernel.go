// Package kernel implements the Kernel & Planner (§4.1): task
// classification, profile resolution, governance binding, and the
// submit/status surface the CLI drives, grounded on
// internal/orchestrator/engine.go's Engine-as-coordinator shape.
package kernel

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/opsloop/axon/internal/autonomy"
	"github.com/opsloop/axon/internal/ranker"
	"github.com/opsloop/axon/pkg/evidence"
)

// ClassificationRule matches task text to a TaskKind, either by explicit
// prefix (e.g. "/research ...") or by keyword+context.
type ClassificationRule struct {
	TaskKind TaskKindRule
	Prefixes []string
	Keywords []*regexp.Regexp
}

// TaskKindRule avoids importing evidence twice under two names; it is just
// evidence.TaskKind, aliased for readability in rule tables.
type TaskKindRule = evidence.TaskKind

// Classify applies the rule set: explicit-prefix detection first, then
// keyword+context match, falling back to "other" — which is not an error,
// it routes to the generalist strategy set (§4.1).
func Classify(text string, rules []ClassificationRule) evidence.TaskKind {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, r := range rules {
		for _, prefix := range r.Prefixes {
			if strings.HasPrefix(lower, strings.ToLower(prefix)) {
				return r.TaskKind
			}
		}
	}
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if kw.MatchString(lower) {
				return r.TaskKind
			}
		}
	}
	return evidence.TaskKindOther
}

// ProfileResolver resolves profile=auto to a concrete profile from
// configured task_kind overrides, falling back to a configured default.
type ProfileResolver func(kind evidence.TaskKind) evidence.Profile

// ProfileDefaults holds the per-profile learning/fallback-cap defaults the
// Kernel applies once a concrete profile is resolved (§4.1).
type ProfileDefaults struct {
	LearningEnabled  bool
	MaxFallbackSteps int
	AllowedLayers    []string
	BlockedMaturity  []string
	MaxRiskLevel     evidence.RiskLevel
}

// RunStore is the persistence surface the Kernel needs: durable logging and
// a way to look up a run's terminal summary.
type RunStore interface {
	RecordRunStart(runID, taskID, profile string) error
	RunByID(runID string) (*evidence.RunSummary, error)
}

// Kernel transforms TaskSpecs into RunContexts and ExecutionPlans, and
// dispatches execution onto the bounded worker pool.
type Kernel struct {
	mu               sync.Mutex
	rules            []ClassificationRule
	resolveProfile   ProfileResolver
	defaultsByProfile map[evidence.Profile]ProfileDefaults
	ranker           *ranker.Ranker
	engine           *autonomy.Engine
	store            RunStore
	pool             *Pool
	pending          map[string]bool
}

// New constructs a Kernel.
func New(rules []ClassificationRule, resolveProfile ProfileResolver, defaults map[evidence.Profile]ProfileDefaults, rk *ranker.Ranker, engine *autonomy.Engine, store RunStore, pool *Pool) *Kernel {
	return &Kernel{
		rules:             rules,
		resolveProfile:    resolveProfile,
		defaultsByProfile: defaults,
		ranker:            rk,
		engine:            engine,
		store:             store,
		pool:              pool,
		pending:           make(map[string]bool),
	}
}

// BuildRunContext classifies the task, resolves its profile, and binds
// governance constraints into an immutable RunContext (§4.1).
func (k *Kernel) BuildRunContext(task *evidence.TaskSpec, requestedProfile evidence.Profile) (*evidence.RunContext, error) {
	task.TaskKind = Classify(task.Text, k.rules)

	profile := requestedProfile
	if profile == evidence.ProfileAuto {
		profile = k.resolveProfile(task.TaskKind)
	}

	defaults, ok := k.defaultsByProfile[profile]
	if !ok {
		return nil, fmt.Errorf("no defaults configured for profile %q", profile)
	}
	if profile == evidence.ProfileStrict {
		defaults.LearningEnabled = false
		defaults.MaxFallbackSteps = 1
	}

	rc := &evidence.RunContext{
		RunID:            uuid.New().String(),
		TaskID:           task.TaskID,
		Profile:          profile,
		AllowedLayers:    toSet(defaults.AllowedLayers),
		BlockedMaturity:  toSet(defaults.BlockedMaturity),
		MaxRiskLevel:     defaults.MaxRiskLevel,
		Deterministic:    profile == evidence.ProfileStrict,
		LearningEnabled:  defaults.LearningEnabled,
		MaxFallbackSteps: defaults.MaxFallbackSteps,
		TraceID:          uuid.New().String(),
	}
	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("built an invalid run context: %w", err)
	}
	return rc, nil
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, i := range items {
		m[i] = true
	}
	return m
}

// Submit builds a RunContext and ExecutionPlan for task, dispatches
// execution onto the worker pool, and returns the run_id immediately —
// execution is asynchronous; callers poll Status.
func (k *Kernel) Submit(task *evidence.TaskSpec, requestedProfile evidence.Profile, clarify autonomy.ClarificationCheck) (string, error) {
	if err := task.Validate(); err != nil {
		return "", fmt.Errorf("invalid task: %w", err)
	}

	rc, err := k.BuildRunContext(task, requestedProfile)
	if err != nil {
		return "", err
	}

	plan := k.ranker.Plan(rc, task.Text, rc.MaxFallbackSteps, task.TaskKind)

	if err := k.store.RecordRunStart(rc.RunID, task.TaskID, string(rc.Profile)); err != nil {
		return "", fmt.Errorf("failed to index run start: %w", err)
	}

	k.mu.Lock()
	k.pending[rc.RunID] = true
	k.mu.Unlock()

	k.pool.Submit(func() {
		defer func() {
			k.mu.Lock()
			delete(k.pending, rc.RunID)
			k.mu.Unlock()
		}()
		k.engine.Run(context.Background(), plan, task, rc, clarify)
	})

	return rc.RunID, nil
}

// Status reports a run's terminal summary, or ok=false while it is still
// in flight or unknown.
func (k *Kernel) Status(runID string) (*evidence.RunSummary, bool) {
	k.mu.Lock()
	_, pending := k.pending[runID]
	k.mu.Unlock()
	if pending {
		return nil, false
	}

	summary, err := k.store.RunByID(runID)
	if err != nil {
		return nil, false
	}
	return summary, true
}
