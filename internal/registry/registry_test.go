package registry

import (
	"context"
	"testing"

	"github.com/opsloop/axon/internal/axonerr"
	"github.com/opsloop/axon/pkg/evidence"
)

func validDescriptor(name string) *Descriptor {
	return &Descriptor{
		Name:          name,
		TaskKinds:     []evidence.TaskKind{evidence.TaskKindResearch},
		RiskLevel:     evidence.RiskLow,
		Maturity:      evidence.MaturityStable,
		RequiredLayer: "core",
		ExecutionMode: ModeAdvisor,
		Inputs:        []InputSpec{{Name: "query", Required: true}},
		Acceptance: []AcceptanceCheck{
			{Name: "non-empty", Check: func(r *ServiceResult) bool { return r != nil }},
		},
	}
}

func TestRegister_RejectsMissingAcceptance(t *testing.T) {
	d := validDescriptor("demo")
	d.Acceptance = nil
	r := New(nil)
	err := r.Register(d, func(ctx context.Context, inputs map[string]string, rc *evidence.RunContext) (*ServiceResult, error) {
		return &ServiceResult{}, nil
	})
	if err == nil {
		t.Error("expected lint failure for missing acceptance checks")
	}
}

func TestCall_SkipsOnMissingRequiredInput(t *testing.T) {
	r := New(nil)
	d := validDescriptor("demo")
	if err := r.Register(d, func(ctx context.Context, inputs map[string]string, rc *evidence.RunContext) (*ServiceResult, error) {
		return &ServiceResult{}, nil
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	outcome, err := r.Call(context.Background(), "demo", map[string]string{}, &evidence.RunContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Skipped {
		t.Error("expected call to be skipped for missing required input")
	}
	if outcome.Code != axonerr.MissingInput {
		t.Errorf("expected missing-input skip to carry code %q, got %q", axonerr.MissingInput, outcome.Code)
	}
}

func TestCall_SkipsOnMissingService(t *testing.T) {
	r := New(nil)
	outcome, err := r.Call(context.Background(), "ghost", map[string]string{}, &evidence.RunContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Skipped || outcome.Code != axonerr.ServiceUnavailable {
		t.Fatalf("expected service_unavailable skip for an unregistered service, got %+v", outcome)
	}
}

func TestCall_SkipsOnFailingDecisionGate(t *testing.T) {
	r := New(nil)
	d := validDescriptor("demo")
	d.DecisionGates = []DecisionGate{
		{Name: "always-reject", Predicate: func(inputs map[string]string) bool { return false }},
	}
	if err := r.Register(d, func(ctx context.Context, inputs map[string]string, rc *evidence.RunContext) (*ServiceResult, error) {
		return &ServiceResult{}, nil
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	outcome, err := r.Call(context.Background(), "demo", map[string]string{"query": "x"}, &evidence.RunContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Skipped {
		t.Error("expected call to be skipped by decision gate")
	}
	if outcome.Code != axonerr.GovernanceBlock {
		t.Errorf("expected decision-gate skip to carry code %q, not contract_violation, got %q", axonerr.GovernanceBlock, outcome.Code)
	}
}

func TestCall_SucceedsAndRunsAcceptance(t *testing.T) {
	r := New(nil)
	d := validDescriptor("demo")
	if err := r.Register(d, func(ctx context.Context, inputs map[string]string, rc *evidence.RunContext) (*ServiceResult, error) {
		return &ServiceResult{Artifacts: []evidence.ArtifactRef{{URI: "x"}}}, nil
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	outcome, err := r.Call(context.Background(), "demo", map[string]string{"query": "x"}, &evidence.RunContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Skipped || outcome.Result == nil || len(outcome.Result.Artifacts) != 1 {
		t.Fatalf("expected successful result with one artifact, got %+v", outcome)
	}
}

func TestCall_UnregisteredServiceIsSkipped(t *testing.T) {
	r := New(nil)
	outcome, err := r.Call(context.Background(), "nope", nil, &evidence.RunContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Skipped {
		t.Error("expected unregistered service call to be skipped")
	}
}

func TestForTaskKind_FiltersAndSorts(t *testing.T) {
	r := New(nil)
	a := validDescriptor("zeta")
	b := validDescriptor("alpha")
	noop := func(ctx context.Context, inputs map[string]string, rc *evidence.RunContext) (*ServiceResult, error) {
		return &ServiceResult{}, nil
	}
	if err := r.Register(a, noop); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(b, noop); err != nil {
		t.Fatal(err)
	}

	descs := r.ForTaskKind(evidence.TaskKindResearch)
	if len(descs) != 2 || descs[0].Name != "alpha" || descs[1].Name != "zeta" {
		t.Fatalf("expected sorted [alpha zeta], got %+v", descs)
	}
}
