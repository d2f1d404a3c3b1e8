// Package registry implements the Service Registry & Capability Contract
// (§4.4): uniform invocation of leaf capabilities behind a lint-enforced
// contract, generalized from the teacher's config.Agent.Validate pattern
// (internal/config/config.go) into a runtime component rather than a
// load-time-only check, since services here register dynamically instead of
// being fixed at process start.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opsloop/axon/internal/axonerr"
	"github.com/opsloop/axon/pkg/evidence"
)

// InputSpec describes one named parameter a service accepts.
type InputSpec struct {
	Name     string
	Required bool
	Default  string
}

// DecisionGate is a pure predicate over resolved inputs that must hold for a
// service to be eligible for invocation. A failing gate makes the attempt
// `skipped`, never `failed` — eligibility, not error.
type DecisionGate struct {
	Name      string
	Predicate func(inputs map[string]string) bool
}

// ExecutionMode is whether a service can mutate external state.
type ExecutionMode string

const (
	ModeAdvisor  ExecutionMode = "advisor"
	ModeOperator ExecutionMode = "operator"
)

// AcceptanceCheck is a machine-checkable post-condition over a ServiceResult.
type AcceptanceCheck struct {
	Name  string
	Check func(*ServiceResult) bool
}

// ServiceResult is what a capability service returns on success.
type ServiceResult struct {
	Artifacts []evidence.ArtifactRef
	Advisory  bool // true when the result is partial/best-effort, not authoritative
}

// Invoke is the function a registered service executes with resolved inputs.
type Invoke func(ctx context.Context, inputs map[string]string, rc *evidence.RunContext) (*ServiceResult, error)

// Descriptor is the capability contract every registered service declares.
type Descriptor struct {
	Name           string
	Description    string
	MatchTerms     []string
	TaskKinds      []evidence.TaskKind
	RiskLevel      evidence.RiskLevel
	Maturity       evidence.Maturity
	RequiredLayer  string
	ExecutionMode  ExecutionMode
	SideEffects    []string
	Sandbox        bool
	Fallback       string
	Inputs         []InputSpec
	DecisionGates  []DecisionGate
	Acceptance     []AcceptanceCheck
	invoke         Invoke
}

// Lint enforces the capability contract at registration time (§4.4): a
// missing contract field fails registration outright, rather than surfacing
// later as a confusing runtime skip.
func (d *Descriptor) Lint() error {
	if d.Name == "" {
		return fmt.Errorf("service descriptor missing name")
	}
	if len(d.TaskKinds) == 0 {
		return fmt.Errorf("service %q: must declare at least one task_kind", d.Name)
	}
	switch d.ExecutionMode {
	case ModeAdvisor, ModeOperator:
	default:
		return fmt.Errorf("service %q: execution_mode must be advisor or operator", d.Name)
	}
	if d.RequiredLayer == "" {
		return fmt.Errorf("service %q: required_layer is required", d.Name)
	}
	if len(d.Acceptance) == 0 {
		return fmt.Errorf("service %q: must declare at least one acceptance post-condition", d.Name)
	}
	if d.Sandbox && d.ExecutionMode != ModeOperator {
		return fmt.Errorf("service %q: sandbox may only be set for operator-mode services", d.Name)
	}
	if d.invoke == nil {
		return fmt.Errorf("service %q: no invoke function bound", d.Name)
	}
	return nil
}

// Sandboxer runs an operator-mode, sandbox-declared invocation in isolation
// (internal/sandbox implements this against Docker).
type Sandboxer interface {
	Run(ctx context.Context, serviceName string, inputs map[string]string, deadline time.Duration) (*ServiceResult, error)
}

// Registry holds every registered capability service.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*Descriptor
	sandbox  Sandboxer
}

// New creates an empty Registry. sandbox may be nil if no service declares
// sandbox:true.
func New(sandbox Sandboxer) *Registry {
	return &Registry{services: make(map[string]*Descriptor), sandbox: sandbox}
}

// Register lints and adds a service. Strict lint failures reject the
// registration; the caller decides whether that is fatal to process start.
func (r *Registry) Register(d *Descriptor, invoke Invoke) error {
	d.invoke = invoke
	if err := d.Lint(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[d.Name] = d
	return nil
}

// List returns every registered descriptor, sorted by name for deterministic
// output (e.g. `axon services list`).
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.services))
	for _, d := range r.services {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ForTaskKind returns every registered service that declares the given
// task kind, sorted by name.
func (r *Registry) ForTaskKind(kind evidence.TaskKind) []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Descriptor
	for _, d := range r.services {
		for _, k := range d.TaskKinds {
			if k == kind {
				out = append(out, d)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CallOutcome distinguishes a skip (ineligible) from a genuine failure so the
// autonomy engine can classify the attempt correctly. Code carries the
// error_kind a skip should be recorded under; it is unset (empty) on a
// non-skipped outcome.
type CallOutcome struct {
	Result  *ServiceResult
	Skipped bool
	Reason  string
	Code    axonerr.Code
}

// Call resolves inputs, checks decision gates, and invokes the named
// service. A missing service, an unmet required input, or a failing
// decision gate all produce Skipped=true rather than an error — decision
// gates are eligibility, not failure (§4.4).
func (r *Registry) Call(ctx context.Context, name string, params map[string]string, rc *evidence.RunContext) (*CallOutcome, error) {
	r.mu.RLock()
	d, ok := r.services[name]
	r.mu.RUnlock()
	if !ok {
		return &CallOutcome{Skipped: true, Reason: "service not registered", Code: axonerr.ServiceUnavailable}, nil
	}

	inputs := map[string]string{}
	for k, v := range params {
		inputs[k] = v
	}
	for _, in := range d.Inputs {
		if _, present := inputs[in.Name]; !present {
			if in.Default != "" {
				inputs[in.Name] = in.Default
				continue
			}
			if in.Required {
				return &CallOutcome{Skipped: true, Reason: fmt.Sprintf("missing required input %q", in.Name), Code: axonerr.MissingInput}, nil
			}
		}
	}

	for _, gate := range d.DecisionGates {
		if !gate.Predicate(inputs) {
			return &CallOutcome{Skipped: true, Reason: fmt.Sprintf("decision gate %q rejected inputs", gate.Name), Code: axonerr.GovernanceBlock}, nil
		}
	}

	var result *ServiceResult
	var err error
	if d.Sandbox {
		if r.sandbox == nil {
			return nil, axonerr.New(axonerr.Internal, "service %q requires sandboxed execution but no sandbox is configured", name)
		}
		result, err = r.sandbox.Run(ctx, name, inputs, 60*time.Second)
	} else {
		result, err = d.invoke(ctx, inputs, rc)
	}
	if err != nil {
		return nil, err
	}

	for _, acc := range d.Acceptance {
		if !acc.Check(result) {
			return nil, axonerr.New(axonerr.ContractViolation, "service %q result failed acceptance check %q", name, acc.Name)
		}
	}

	return &CallOutcome{Result: result}, nil
}
