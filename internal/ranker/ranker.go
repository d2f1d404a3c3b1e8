// Package ranker implements the Strategy Ranker (§4.2): candidate
// generation, governance filtering, weighted composite scoring, and a
// deterministic tie-break, grounded on internal/orchestrator/granting.go's
// SelectExclusiveWinner alphabetical-tiebreak pattern, generalized here to
// the four-key sort the specification requires.
package ranker

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/opsloop/axon/internal/registry"
	"github.com/opsloop/axon/pkg/evidence"
)

// MemoryLookup resolves a strategy's historical success ratio.
// Missing history returns (0, false); the caller substitutes the
// configured prior.
type MemoryLookup func(strategyID string) (score float64, found bool)

// Weights are the per-profile scoring weights (§4.2).
type Weights struct {
	Base   float64
	Memory float64
}

// Ranker turns a RunContext into an ExecutionPlan.
type Ranker struct {
	registry           *registry.Registry
	memory             MemoryLookup
	memoryPrior        float64
	weightsByProfile   map[evidence.Profile]Weights
	ambiguityThreshold map[evidence.Profile]float64
	blockedStrategies  map[string]bool
	allowedStrategies  map[string]bool
	baseScorer         func(taskText string, d *registry.Descriptor) float64
}

// Option configures a Ranker at construction time.
type Option func(*Ranker)

// WithBlockedStrategies excludes the named strategy IDs from every plan.
func WithBlockedStrategies(ids []string) Option {
	return func(r *Ranker) {
		for _, id := range ids {
			r.blockedStrategies[id] = true
		}
	}
}

// WithAllowedStrategies, when non-empty, restricts every plan to only the
// named strategy IDs.
func WithAllowedStrategies(ids []string) Option {
	return func(r *Ranker) {
		for _, id := range ids {
			r.allowedStrategies[id] = true
		}
	}
}

// WithBaseScorer overrides the default keyword-fit scorer.
func WithBaseScorer(f func(taskText string, d *registry.Descriptor) float64) Option {
	return func(r *Ranker) { r.baseScorer = f }
}

// New constructs a Ranker over the given service registry.
func New(reg *registry.Registry, memory MemoryLookup, memoryPrior float64, weights map[evidence.Profile]Weights, ambiguity map[evidence.Profile]float64, opts ...Option) *Ranker {
	r := &Ranker{
		registry:           reg,
		memory:             memory,
		memoryPrior:        memoryPrior,
		weightsByProfile:   weights,
		ambiguityThreshold: ambiguity,
		blockedStrategies:  map[string]bool{},
		allowedStrategies:  map[string]bool{},
		baseScorer:         KeywordScorer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var wordPattern = regexp.MustCompile(`[a-zA-Z0-9_]+|[\p{Han}]+`)

func tokenize(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}

// KeywordScorer is the deterministic textual/keyword-fit scorer required by
// §4.2: a weighted blend of declared match-term hits and token overlap
// between the task text and the descriptor's own vocabulary (name,
// description, match terms), grounded on
// original_source/scripts/autonomy_generalist.py's _skill_score (trigger
// hits weighted 0.4 each, token overlap weighted up to 0.8). This is the
// default baseScorer; callers needing a different fit function supply one
// via WithBaseScorer.
func KeywordScorer(taskText string, d *registry.Descriptor) float64 {
	low := strings.ToLower(taskText)
	hits := 0
	for _, term := range d.MatchTerms {
		if term == "" {
			continue
		}
		if strings.Contains(low, strings.ToLower(term)) {
			hits++
		}
	}
	triggerScore := float64(hits) * 0.4

	taskTokens := tokenize(taskText)
	taskSet := make(map[string]bool, len(taskTokens))
	for _, tok := range taskTokens {
		taskSet[tok] = true
	}

	vocab := tokenize(strings.Join(append([]string{d.Name, d.Description}, d.MatchTerms...), " "))
	vocabSet := make(map[string]bool, len(vocab))
	for _, tok := range vocab {
		vocabSet[tok] = true
	}

	overlap := 0
	for tok := range taskSet {
		if vocabSet[tok] {
			overlap++
		}
	}
	denom := len(taskSet)
	if denom == 0 {
		denom = 1
	}
	overlapScore := math.Min(1.0, float64(overlap)/float64(denom)) * 0.8

	return triggerScore + overlapScore
}

// Plan produces an ExecutionPlan for the given RunContext and task text.
func (r *Ranker) Plan(rc *evidence.RunContext, taskText string, maxFallbackSteps int, kind evidence.TaskKind) *evidence.ExecutionPlan {
	candidates := r.candidatesFor(rc, taskText, kind)

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore // 1. composite descending
		}
		if a.RiskLevel != b.RiskLevel {
			return a.RiskLevel.Less(b.RiskLevel) // 2. risk ascending (low first)
		}
		if a.Maturity != b.Maturity {
			return a.Maturity.MoreMatureThan(b.Maturity) // 3. maturity descending (stable first)
		}
		return a.StrategyID < b.StrategyID // 4. strategy_id lexicographic
	})

	ambiguous := false
	if len(candidates) >= 2 {
		threshold := r.ambiguityThreshold[rc.Profile]
		gap := candidates[0].CompositeScore - candidates[1].CompositeScore
		if rc.Profile == evidence.ProfileStrict && gap < threshold {
			ambiguous = true
		}
	}

	k := maxFallbackSteps
	if k > len(candidates) {
		k = len(candidates)
	}
	if k < 0 {
		k = 0
	}

	return &evidence.ExecutionPlan{
		RunID:      rc.RunID,
		Candidates: candidates[:k],
		Ambiguous:  ambiguous,
	}
}

func (r *Ranker) candidatesFor(rc *evidence.RunContext, taskText string, kind evidence.TaskKind) []evidence.StrategyCandidate {
	weights := r.weightsByProfile[rc.Profile]

	var out []evidence.StrategyCandidate
	for _, d := range r.registry.ForTaskKind(kind) {
		if !r.eligible(rc, d) {
			continue
		}

		base := r.baseScorer(taskText, d)
		memory, found := r.memory(d.Name)
		if !found {
			memory = r.memoryPrior
		}
		composite := weights.Base*base + weights.Memory*memory

		out = append(out, evidence.StrategyCandidate{
			StrategyID:     d.Name,
			ServiceBinding: d.Name,
			BaseScore:      base,
			MemoryScore:    memory,
			CompositeScore: composite,
			RiskLevel:      d.RiskLevel,
			Maturity:       d.Maturity,
			RequiredLayer:  d.RequiredLayer,
			RequiredInputs: requiredInputNames(d),
			SideEffects:    d.SideEffects,
		})
	}
	return out
}

func (r *Ranker) eligible(rc *evidence.RunContext, d *registry.Descriptor) bool {
	if len(r.allowedStrategies) > 0 && !r.allowedStrategies[d.Name] {
		return false
	}
	if r.blockedStrategies[d.Name] {
		return false
	}
	if !rc.AllowedLayers[d.RequiredLayer] {
		return false
	}
	if rc.BlockedMaturity[string(d.Maturity)] {
		return false
	}
	if !d.RiskLevel.AtMost(rc.MaxRiskLevel) {
		return false
	}
	return true
}

func requiredInputNames(d *registry.Descriptor) []string {
	var names []string
	for _, in := range d.Inputs {
		if in.Required {
			names = append(names, in.Name)
		}
	}
	return names
}
