// Package autonomy implements the Autonomy Engine execution loop (§4.3):
// sequential candidate execution under a fallback discipline, clarification
// short-circuit, and reflection-log contract, grounded on
// internal/orchestrator/engine.go's Engine struct shape and
// internal/orchestrator/feedback_loop.go's iteration-limit/termination-reason
// discipline, generalized from claim-driven agent dispatch to
// ExecutionPlan-driven candidate dispatch.
package autonomy

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opsloop/axon/internal/axonerr"
	"github.com/opsloop/axon/internal/governance"
	"github.com/opsloop/axon/internal/registry"
	"github.com/opsloop/axon/pkg/evidence"
)

// Logger is implemented by *store.Store (internal/store) or any
// component that needs to observe attempts/runs as they are sealed.
type Logger interface {
	AppendAttempt(*evidence.ExecutionAttempt) error
	AppendRunSummary(*evidence.RunSummary) error
}

// LiveNotifier publishes attempts/run summaries for concurrent observers.
// Optional: a nil LiveNotifier simply skips live fan-out.
type LiveNotifier interface {
	PublishAttempt(ctx context.Context, a *evidence.ExecutionAttempt) error
	PublishRunSummary(ctx context.Context, s *evidence.RunSummary) error
}

// InputResolver resolves a strategy's required parameters from a TaskSpec's
// explicit params plus any defaults; missing required inputs with no
// default is reported via ok=false.
type InputResolver func(required []string, task *evidence.TaskSpec) (params map[string]string, ok bool, missing string)

// Engine runs ExecutionPlans to completion.
type Engine struct {
	registry  *registry.Registry
	gov       *governance.Rules
	logger    Logger
	live      LiveNotifier
	resolve   InputResolver
	deadline  time.Duration
}

// New constructs an autonomy Engine.
func New(reg *registry.Registry, gov *governance.Rules, logger Logger, live LiveNotifier, resolve InputResolver, perAttemptDeadline time.Duration) *Engine {
	if perAttemptDeadline <= 0 {
		perAttemptDeadline = 60 * time.Second
	}
	return &Engine{registry: reg, gov: gov, logger: logger, live: live, resolve: resolve, deadline: perAttemptDeadline}
}

// ClarificationCheck, when non-nil, lets the planner flag structurally
// missing high-value inputs before any candidate is attempted.
type ClarificationCheck func(plan *evidence.ExecutionPlan, task *evidence.TaskSpec) (questions []string, assumptions []string, needed bool)

// Run executes plan's candidates in order against task, producing a
// RunSummary and DeliveryBundle.
func (e *Engine) Run(ctx context.Context, plan *evidence.ExecutionPlan, task *evidence.TaskSpec, rc *evidence.RunContext, clarify ClarificationCheck) (*evidence.RunSummary, *evidence.DeliveryBundle) {
	if clarify != nil {
		if questions, assumptions, needed := clarify(plan, task); needed {
			if len(questions) > 2 {
				questions = questions[:2]
			}
			bundle := &evidence.DeliveryBundle{
				RunID:                  plan.RunID,
				Headline:               "Clarification needed before this task can proceed",
				ClarificationQuestions: questions,
				Assumptions:            assumptions,
			}
			summary := &evidence.RunSummary{RunID: plan.RunID, TaskID: task.TaskID, Outcome: evidence.OutcomeClarificationNeeded}
			e.seal(ctx, summary)
			return summary, bundle
		}
	}

	var anyAdvisoryArtifact bool
	var lastAdvisoryStrategy string
	var lastAdvisoryArtifacts []evidence.ArtifactRef
	attemptsCount := 0
	var totalLatency int64

	for _, candidate := range plan.Candidates {
		attemptsCount++
		attempt := &evidence.ExecutionAttempt{
			AttemptID: uuid.New().String(),
			RunID:     plan.RunID,
			StrategyID: candidate.StrategyID,
			StartedAt: time.Now().UTC(),
		}

		if err := e.gov.Gate(&candidate); err != nil {
			attempt.Status = evidence.AttemptSkipped
			attempt.ErrorKind = string(axonerr.GovernanceBlock)
			attempt.ErrorMessage = err.Error()
			e.sealAttempt(ctx, attempt)
			continue
		}

		if governance.RequiresApproval(candidate.SideEffects) {
			if err := e.gov.CheckApproval(); err != nil {
				attempt.Status = evidence.AttemptSkipped
				attempt.ErrorKind = string(axonerr.CodeOf(err))
				attempt.ErrorMessage = err.Error()
				e.sealAttempt(ctx, attempt)
				continue
			}
		}

		params, ok, missing := e.resolve(candidate.RequiredInputs, task)
		if !ok {
			attempt.Status = evidence.AttemptSkipped
			attempt.ErrorKind = string(axonerr.MissingInput)
			attempt.ErrorMessage = "missing required input: " + missing
			e.sealAttempt(ctx, attempt)
			continue
		}

		if pattern := e.gov.ScanForSecrets(joinParams(params)); pattern != "" {
			attempt.EndedAt = time.Now().UTC()
			attempt.Telemetry.LatencyMs = attempt.EndedAt.Sub(attempt.StartedAt).Milliseconds()
			totalLatency += attempt.Telemetry.LatencyMs
			attempt.Status = evidence.AttemptFailed
			attempt.ErrorKind = string(axonerr.PolicyViolation)
			attempt.ErrorMessage = "outgoing parameter matched sensitive pattern " + pattern
			e.sealAttempt(ctx, attempt)
			summary := e.buildSummary(plan.RunID, task.TaskID, evidence.OutcomeAborted, "", attemptsCount, totalLatency)
			e.seal(ctx, summary)
			return summary, abortedBundle(plan.RunID, attempt.ErrorMessage)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.deadline)
		outcome, err := e.registry.Call(attemptCtx, candidate.ServiceBinding, params, rc)
		cancel()

		attempt.EndedAt = time.Now().UTC()
		attempt.Telemetry.LatencyMs = attempt.EndedAt.Sub(attempt.StartedAt).Milliseconds()
		totalLatency += attempt.Telemetry.LatencyMs

		switch {
		case err != nil:
			code := axonerr.CodeOf(err)
			attempt.Status = evidence.AttemptFailed
			attempt.ErrorKind = string(code)
			attempt.ErrorMessage = err.Error()
			e.sealAttempt(ctx, attempt)
			if code.Fatal() {
				summary := e.buildSummary(plan.RunID, task.TaskID, evidence.OutcomeAborted, "", attemptsCount, totalLatency)
				e.seal(ctx, summary)
				return summary, abortedBundle(plan.RunID, attempt.ErrorMessage)
			}
			continue
		case outcome.Skipped:
			code := outcome.Code
			if code == "" {
				code = axonerr.ContractViolation
			}
			attempt.Status = evidence.AttemptSkipped
			attempt.ErrorKind = string(code)
			attempt.ErrorMessage = outcome.Reason
			e.sealAttempt(ctx, attempt)
			continue
		default:
			attempt.Status = evidence.AttemptSucceeded
			attempt.Artifacts = outcome.Result.Artifacts
			e.sealAttempt(ctx, attempt)
			if outcome.Result.Advisory {
				anyAdvisoryArtifact = true
				lastAdvisoryStrategy = candidate.StrategyID
				lastAdvisoryArtifacts = attempt.Artifacts
				continue
			}

			summary := e.buildSummary(plan.RunID, task.TaskID, evidence.OutcomeSucceeded, candidate.StrategyID, attemptsCount, totalLatency)
			e.seal(ctx, summary)
			return summary, e.succeededBundle(plan.RunID, candidate.StrategyID, attempt.Artifacts)
		}
	}

	outcome := evidence.OutcomeFailed
	chosen := ""
	if anyAdvisoryArtifact {
		outcome = evidence.OutcomeDegraded
		chosen = lastAdvisoryStrategy
	}
	summary := e.buildSummary(plan.RunID, task.TaskID, outcome, chosen, attemptsCount, totalLatency)
	e.seal(ctx, summary)
	return summary, e.exhaustedBundle(plan.RunID, outcome, chosen, lastAdvisoryArtifacts)
}

func joinParams(params map[string]string) string {
	var b strings.Builder
	for _, v := range params {
		b.WriteString(v)
		b.WriteString("\n")
	}
	return b.String()
}

func (e *Engine) buildSummary(runID, taskID string, outcome evidence.Outcome, chosen string, attempts int, latency int64) *evidence.RunSummary {
	return &evidence.RunSummary{
		RunID:          runID,
		TaskID:         taskID,
		Outcome:        outcome,
		ChosenStrategy: chosen,
		AttemptsCount:  attempts,
		TotalLatencyMs: latency,
	}
}

func (e *Engine) sealAttempt(ctx context.Context, a *evidence.ExecutionAttempt) {
	if err := e.logger.AppendAttempt(a); err != nil {
		log.Printf("[autonomy] failed to append attempt %s: %v", a.AttemptID, err)
	}
	if e.live != nil {
		if err := e.live.PublishAttempt(ctx, a); err != nil {
			log.Printf("[autonomy] failed to publish attempt %s: %v", a.AttemptID, err)
		}
	}
}

func (e *Engine) seal(ctx context.Context, s *evidence.RunSummary) {
	if err := e.logger.AppendRunSummary(s); err != nil {
		log.Printf("[autonomy] failed to append run summary %s: %v", s.RunID, err)
	}
	if e.live != nil {
		if err := e.live.PublishRunSummary(ctx, s); err != nil {
			log.Printf("[autonomy] failed to publish run summary %s: %v", s.RunID, err)
		}
	}
}

func (e *Engine) succeededBundle(runID, strategy string, artifacts []evidence.ArtifactRef) *evidence.DeliveryBundle {
	b := &evidence.DeliveryBundle{RunID: runID, Headline: "Completed via " + strategy}
	if len(artifacts) > 0 {
		b.PrimaryArtifact = &artifacts[0]
		if len(artifacts) > 1 {
			b.SupportingArtifacts = artifacts[1:]
		}
	}
	return b
}

func (e *Engine) exhaustedBundle(runID string, outcome evidence.Outcome, advisoryStrategy string, advisoryArtifacts []evidence.ArtifactRef) *evidence.DeliveryBundle {
	headline := "All strategies failed"
	if outcome == evidence.OutcomeDegraded {
		headline = "Completed with a degraded, advisory-only result"
	}
	b := &evidence.DeliveryBundle{
		RunID:        runID,
		Headline:     headline,
		WhyFailed:    "every candidate strategy was exhausted",
		RetryOptions: []evidence.RetryOption{evidence.RetryStrict, evidence.RetryAdaptive, evidence.RetryAllowHighRisk},
	}
	if outcome == evidence.OutcomeDegraded && len(advisoryArtifacts) > 0 {
		b.Headline = "Completed via " + advisoryStrategy + " (advisory only)"
		b.PrimaryArtifact = &advisoryArtifacts[0]
		if len(advisoryArtifacts) > 1 {
			b.SupportingArtifacts = advisoryArtifacts[1:]
		}
	}
	return b
}

func abortedBundle(runID, reason string) *evidence.DeliveryBundle {
	return &evidence.DeliveryBundle{RunID: runID, Headline: "Run aborted", WhyFailed: reason}
}
