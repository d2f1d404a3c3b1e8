package kernel

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/opsloop/axon/internal/autonomy"
	"github.com/opsloop/axon/internal/governance"
	"github.com/opsloop/axon/internal/ranker"
	"github.com/opsloop/axon/internal/registry"
	"github.com/opsloop/axon/pkg/evidence"
)

func TestClassify_ExplicitPrefixWins(t *testing.T) {
	rules := []ClassificationRule{
		{TaskKind: evidence.TaskKindResearch, Prefixes: []string{"/research"}},
		{TaskKind: evidence.TaskKindImage, Keywords: []*regexp.Regexp{regexp.MustCompile(`image|picture`)}},
	}
	kind := Classify("/research the market for widgets", rules)
	if kind != evidence.TaskKindResearch {
		t.Fatalf("expected research via explicit prefix, got %v", kind)
	}
}

func TestClassify_KeywordFallback(t *testing.T) {
	rules := []ClassificationRule{
		{TaskKind: evidence.TaskKindImage, Keywords: []*regexp.Regexp{regexp.MustCompile(`image|picture`)}},
	}
	if kind := Classify("generate a picture of a cat", rules); kind != evidence.TaskKindImage {
		t.Fatalf("expected image via keyword match, got %v", kind)
	}
}

func TestClassify_UnknownFallsBackToOther(t *testing.T) {
	if kind := Classify("do something entirely novel", nil); kind != evidence.TaskKindOther {
		t.Fatalf("expected fallback to other, got %v", kind)
	}
}

type fakeStore struct {
	summaries map[string]*evidence.RunSummary
}

func (f *fakeStore) RecordRunStart(runID, taskID, profile string) error { return nil }
func (f *fakeStore) RunByID(runID string) (*evidence.RunSummary, error) {
	if s, ok := f.summaries[runID]; ok {
		return s, nil
	}
	return nil, context.DeadlineExceeded
}

func testKernel(t *testing.T) *Kernel {
	t.Helper()
	reg := registry.New(nil)
	if err := reg.Register(&registry.Descriptor{
		Name: "svc-a", TaskKinds: []evidence.TaskKind{evidence.TaskKindOther}, RiskLevel: evidence.RiskLow,
		Maturity: evidence.MaturityStable, RequiredLayer: "core", ExecutionMode: registry.ModeAdvisor,
		Acceptance: []registry.AcceptanceCheck{{Name: "ok", Check: func(*registry.ServiceResult) bool { return true }}},
	}, func(ctx context.Context, inputs map[string]string, rc *evidence.RunContext) (*registry.ServiceResult, error) {
		return &registry.ServiceResult{}, nil
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	weights := map[evidence.Profile]ranker.Weights{evidence.ProfileAdaptive: {Base: 1, Memory: 0}}
	rk := ranker.New(reg, func(string) (float64, bool) { return 0, false }, 0.5, weights, map[evidence.Profile]float64{})

	rules, err := governance.CompileRules([]string{"core"}, nil, evidence.RiskHigh, false, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("compile rules failed: %v", err)
	}
	logger := &captureLogger{}
	eng := autonomy.New(reg, rules, logger, nil, func(required []string, task *evidence.TaskSpec) (map[string]string, bool, string) {
		return map[string]string{}, true, ""
	}, time.Second)

	store := &fakeStore{summaries: map[string]*evidence.RunSummary{}}
	pool := NewPool(2, 8)
	t.Cleanup(pool.Close)

	defaults := map[evidence.Profile]ProfileDefaults{
		evidence.ProfileAdaptive: {LearningEnabled: true, MaxFallbackSteps: 3, AllowedLayers: []string{"core"}, MaxRiskLevel: evidence.RiskHigh},
	}

	return New(nil, func(evidence.TaskKind) evidence.Profile { return evidence.ProfileAdaptive }, defaults, rk, eng, store, pool)
}

type captureLogger struct{}

func (captureLogger) AppendAttempt(*evidence.ExecutionAttempt) error   { return nil }
func (captureLogger) AppendRunSummary(*evidence.RunSummary) error { return nil }

func TestSubmit_ReturnsRunIDImmediately(t *testing.T) {
	k := testKernel(t)
	task := evidence.NewTaskSpec("do the thing", evidence.OriginCLI)
	runID, err := k.Submit(task, evidence.ProfileAdaptive, nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if runID == "" {
		t.Fatal("expected non-empty run id")
	}
}

func TestSubmit_RejectsInvalidTask(t *testing.T) {
	k := testKernel(t)
	_, err := k.Submit(&evidence.TaskSpec{}, evidence.ProfileAdaptive, nil)
	if err == nil {
		t.Error("expected validation error for empty task")
	}
}

func TestBuildRunContext_StrictCapsToOneFallbackStep(t *testing.T) {
	k := testKernel(t)
	k.defaultsByProfile[evidence.ProfileStrict] = ProfileDefaults{MaxFallbackSteps: 1, AllowedLayers: []string{"core"}, MaxRiskLevel: evidence.RiskMedium}
	task := evidence.NewTaskSpec("x", evidence.OriginCLI)
	rc, err := k.BuildRunContext(task, evidence.ProfileStrict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc.MaxFallbackSteps != 1 || rc.LearningEnabled {
		t.Errorf("expected strict profile to cap fallback steps and disable learning, got %+v", rc)
	}
}
