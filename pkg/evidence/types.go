// Package evidence defines the kernel's durable data model — TaskSpec through
// PolicyOverride — and the live (in-memory, Redis-backed) event bus that lets
// concurrently running CLI invocations observe each other's runs. Durable
// persistence of these types lives in internal/store; this package owns only
// their shape, validation, and the wire format used to move them over Redis
// Pub/Sub and between in-process components.
package evidence

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskKind classifies a TaskSpec for routing purposes.
type TaskKind string

const (
	TaskKindPresentation TaskKind = "presentation"
	TaskKindResearch     TaskKind = "research"
	TaskKindDataQuery    TaskKind = "data-query"
	TaskKindImage        TaskKind = "image"
	TaskKindAutomation   TaskKind = "automation"
	TaskKindOther        TaskKind = "other"
)

// Origin identifies where a TaskSpec entered the system.
type Origin string

const (
	OriginCLI       Origin = "cli"
	OriginStudio    Origin = "studio"
	OriginScheduler Origin = "scheduler"
)

// TaskSpec is an immutable description of a user request. Created on ingress
// and never mutated afterward (invariant: callers must copy before editing).
type TaskSpec struct {
	TaskID         string            `json:"task_id"`
	Text           string            `json:"text"`
	TaskKind       TaskKind          `json:"task_kind"`
	EnteredAt      time.Time         `json:"entered_at"`
	Origin         Origin            `json:"origin"`
	ExplicitParams map[string]string `json:"explicit_params,omitempty"`
}

// NewTaskSpec mints a new TaskSpec with a fresh task_id and the current time.
func NewTaskSpec(text string, origin Origin) *TaskSpec {
	return &TaskSpec{
		TaskID:    uuid.New().String(),
		Text:      text,
		TaskKind:  TaskKindOther,
		EnteredAt: time.Now().UTC(),
		Origin:    origin,
	}
}

// Profile is a named governance preset.
type Profile string

const (
	ProfileStrict   Profile = "strict"
	ProfileAdaptive Profile = "adaptive"
	ProfileAuto     Profile = "auto"
)

// RunContext is the profile-bound execution envelope for one run. Lifetime is
// one run; immutable after creation.
type RunContext struct {
	RunID           string          `json:"run_id"`
	TaskID          string          `json:"task_id"`
	Profile         Profile         `json:"profile"`
	AllowedLayers   map[string]bool `json:"allowed_layers"`
	BlockedMaturity map[string]bool `json:"blocked_maturity"`
	MaxRiskLevel    RiskLevel       `json:"max_risk_level"`
	Deterministic   bool            `json:"deterministic"`
	LearningEnabled bool            `json:"learning_enabled"`
	MaxFallbackSteps int            `json:"max_fallback_steps"`
	TraceID         string          `json:"trace_id"`
}

// RiskLevel orders strategy risk for governance capping and ranker tie-break.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// rank returns an ascending ordinal for tie-break and cap comparisons.
func (r RiskLevel) rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 3
	}
}

// AtMost reports whether r is no riskier than max.
func (r RiskLevel) AtMost(max RiskLevel) bool {
	return r.rank() <= max.rank()
}

// Less reports whether r sorts before other (ascending risk, low first).
func (r RiskLevel) Less(other RiskLevel) bool {
	return r.rank() < other.rank()
}

// Maturity is the lifecycle tier of a capability.
type Maturity string

const (
	MaturityExperimental Maturity = "experimental"
	MaturityBeta         Maturity = "beta"
	MaturityStable       Maturity = "stable"
)

// rank returns a descending-preferred ordinal: stable first.
func (m Maturity) rank() int {
	switch m {
	case MaturityStable:
		return 0
	case MaturityBeta:
		return 1
	case MaturityExperimental:
		return 2
	default:
		return 3
	}
}

// MoreMatureThan reports whether m sorts ahead of other under the ranker's
// "maturity descending (stable first)" tie-break rule.
func (m Maturity) MoreMatureThan(other Maturity) bool {
	return m.rank() < other.rank()
}

// StrategyCandidate is one way to satisfy a task.
type StrategyCandidate struct {
	StrategyID      string   `json:"strategy_id"`
	ServiceBinding  string   `json:"service_binding"`
	BaseScore       float64  `json:"base_score"`
	MemoryScore     float64  `json:"memory_score"`
	CompositeScore  float64  `json:"composite_score"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Maturity        Maturity  `json:"maturity"`
	RequiredLayer   string    `json:"required_layer"`
	RequiredInputs  []string  `json:"required_inputs,omitempty"`
	SideEffects     []string  `json:"side_effects,omitempty"`
}

// ExecutionPlan is an ordered sequence of candidates for one RunContext.
type ExecutionPlan struct {
	RunID      string               `json:"run_id"`
	Candidates []StrategyCandidate  `json:"candidates"`
	Ambiguous  bool                 `json:"ambiguous"`
}

// AttemptStatus is the lifecycle outcome of one ExecutionAttempt.
type AttemptStatus string

const (
	AttemptSucceeded AttemptStatus = "succeeded"
	AttemptFailed    AttemptStatus = "failed"
	AttemptSkipped   AttemptStatus = "skipped"
	AttemptAborted   AttemptStatus = "aborted"
)

// Telemetry captures per-attempt timing and retry/fallback counters.
type Telemetry struct {
	LatencyMs      int64 `json:"latency_ms"`
	Retries        int   `json:"retries"`
	FallbacksUsed  int   `json:"fallbacks_used"`
}

// ExecutionAttempt records one candidate's invocation within a run.
type ExecutionAttempt struct {
	AttemptID    string        `json:"attempt_id"`
	RunID        string        `json:"run_id"`
	StrategyID   string        `json:"strategy_id"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      time.Time     `json:"ended_at"`
	Status       AttemptStatus `json:"status"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Artifacts    []ArtifactRef `json:"artifacts,omitempty"`
	Telemetry    Telemetry     `json:"telemetry"`
}

// ArtifactKind is the declared content type of a produced artifact.
type ArtifactKind string

const (
	ArtifactJSON   ArtifactKind = "json"
	ArtifactMD     ArtifactKind = "md"
	ArtifactHTML   ArtifactKind = "html"
	ArtifactBinary ArtifactKind = "binary"
)

// ArtifactRef is an immutable pointer into the content-addressed artifact
// store (internal/store).
type ArtifactRef struct {
	URI        string       `json:"uri"`
	Kind       ArtifactKind `json:"kind"`
	SHA256     string       `json:"sha256"`
	SizeBytes  int64        `json:"size_bytes"`
	ProducedBy string       `json:"produced_by"`
}

// RetryOption is one labelled preset offered to the user on a non-succeeded
// run.
type RetryOption string

const (
	RetryStrict         RetryOption = "strict"
	RetryAdaptive       RetryOption = "adaptive"
	RetryAllowHighRisk  RetryOption = "allow_high_risk_once"
)

// DeliveryBundle is a run's user-facing summary.
type DeliveryBundle struct {
	RunID                  string        `json:"run_id"`
	Headline               string        `json:"headline"`
	WhyFailed              string        `json:"why_failed,omitempty"`
	ClarificationQuestions []string      `json:"clarification_questions,omitempty"`
	Assumptions            []string      `json:"assumptions,omitempty"`
	PrimaryArtifact        *ArtifactRef  `json:"primary_artifact,omitempty"`
	SupportingArtifacts    []ArtifactRef `json:"supporting_artifacts,omitempty"`
	RetryOptions           []RetryOption `json:"retry_options,omitempty"`
}

// Outcome is the terminal sum-type result of a run (§4.3, §9 design note).
type Outcome string

const (
	OutcomeSucceeded            Outcome = "succeeded"
	OutcomeDegraded             Outcome = "degraded"
	OutcomeFailed               Outcome = "failed"
	OutcomeAborted              Outcome = "aborted"
	OutcomeClarificationNeeded  Outcome = "clarification_needed"
)

// RunSummary is the final terminal record for a run.
type RunSummary struct {
	RunID             string  `json:"run_id"`
	TaskID            string  `json:"task_id"`
	Outcome           Outcome `json:"outcome"`
	ChosenStrategy    string  `json:"chosen_strategy,omitempty"`
	AttemptsCount     int     `json:"attempts_count"`
	TotalLatencyMs    int64   `json:"total_latency_ms"`
	DeliveryBundleRef string  `json:"delivery_bundle_ref"`
}

// Rating is the polarity of a FeedbackRecord.
type Rating int

const (
	RatingPositive Rating = 1
	RatingNegative Rating = -1
)

// FeedbackRecord is one user rating of a completed run.
type FeedbackRecord struct {
	RunID       string    `json:"run_id"`
	Rating      Rating    `json:"rating"`
	Note        string    `json:"note,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	Processed   bool      `json:"processed"`
}

// Recommendation is the Tuner's verdict for one strategy-window aggregate.
type Recommendation string

const (
	RecommendPromote        Recommendation = "promote"
	RecommendDemote         Recommendation = "demote"
	RecommendCollectMoreData Recommendation = "collect-more-data"
)

// EvaluationRecord is a periodic strategy-level performance aggregate.
type EvaluationRecord struct {
	StrategyID     string         `json:"strategy_id"`
	WindowStart    time.Time      `json:"window_start"`
	WindowEnd      time.Time      `json:"window_end"`
	SuccessRate    float64        `json:"success_rate"`
	P95LatencyMs   int64          `json:"p95_latency_ms"`
	FallbackRate   float64        `json:"fallback_rate"`
	HealthScore    float64        `json:"health_score"`
	Recommendation Recommendation `json:"recommendation"`
}

// OverrideScope identifies what a PolicyOverride applies to.
type OverrideScope string

const (
	ScopeProfile  OverrideScope = "profile"
	ScopeStrategy OverrideScope = "strategy"
	ScopeTaskKind OverrideScope = "task_kind"
)

// PolicyOverride is one entry in the reversible override log.
type PolicyOverride struct {
	Scope      OverrideScope `json:"scope"`
	Key        string        `json:"key"`
	Value      string        `json:"value"`
	SnapshotID string        `json:"snapshot_id"`
	AppliedAt  time.Time     `json:"applied_at"`
	ApprovedBy string        `json:"approved_by,omitempty"`
}

// Validate reports whether the TaskSpec has well-formed required fields.
func (t *TaskSpec) Validate() error {
	if t.TaskID == "" {
		return fmt.Errorf("task_id cannot be empty")
	}
	if t.Text == "" {
		return fmt.Errorf("text cannot be empty")
	}
	return nil
}

// Validate reports whether the RunContext has well-formed required fields.
func (r *RunContext) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run_id cannot be empty")
	}
	if r.TaskID == "" {
		return fmt.Errorf("task_id cannot be empty")
	}
	switch r.Profile {
	case ProfileStrict, ProfileAdaptive, ProfileAuto:
	default:
		return fmt.Errorf("invalid profile: %q", r.Profile)
	}
	if r.MaxFallbackSteps < 1 {
		return fmt.Errorf("max_fallback_steps must be >= 1, got %d", r.MaxFallbackSteps)
	}
	return nil
}
