// Package tuner implements the Feedback & Policy Tuner (§4.8): periodic
// aggregation of attempts into EvaluationRecords, promote/demote/
// collect-more-data classification, and a reversible PolicyOverride
// snapshot log, grounded on original_source/core/kernel/policy_tuner.py's
// windowed-aggregate-then-classify shape, translated into the
// teacher's explicit-struct, explicit-error idiom.
package tuner

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/opsloop/axon/pkg/evidence"
)

// Weights combine the three per-strategy signals into a health score.
type Weights struct {
	SuccessRate  float64
	InvLatency   float64
	InvFallback  float64
}

// Thresholds drive the promote/demote/collect-more-data classification.
type Thresholds struct {
	HighWatermark      float64
	LowWatermark       float64
	ConsecutiveWindows int
	MinSamples         int
	MaxActions         int
	MinPriorityScore   float64
}

// BreachChecker reports whether strategyID breached a P1/P2 failure pattern
// in the window, forcing a hard demotion to advisor regardless of score
// (§4.8 strict rule).
type BreachChecker func(strategyID string, windowStart, windowEnd time.Time) bool

// OverrideStore appends reversible override entries and can restore a prior
// snapshot.
type OverrideStore interface {
	AppendOverride(*evidence.PolicyOverride) error
	AllOverrides() ([]evidence.PolicyOverride, error)
}

// Tuner evaluates strategy performance and proposes or applies policy
// overrides.
type Tuner struct {
	weights    Weights
	thresholds Thresholds
	breached   BreachChecker
	store      OverrideStore
}

// New constructs a Tuner.
func New(weights Weights, thresholds Thresholds, breached BreachChecker, store OverrideStore) *Tuner {
	return &Tuner{weights: weights, thresholds: thresholds, breached: breached, store: store}
}

// AttemptSample is one attempt reduced to what the tuner needs to aggregate.
type AttemptSample struct {
	StrategyID   string
	TaskKind     evidence.TaskKind
	Succeeded    bool
	LatencyMs    int64
	FallbackUsed bool
}

// recentHistory, when present, supplies each strategy's demote streak so
// "demote for >= M consecutive windows" can be evaluated across calls to
// Evaluate.
type recentHistory = map[string]int

// Evaluate aggregates samples for the window [start,end) per
// (strategy_id, task_kind) and classifies each into an EvaluationRecord.
// demoteStreaks tracks consecutive demote-eligible windows per strategy and
// is mutated in place so callers can persist it between cadence ticks.
func (t *Tuner) Evaluate(samples []AttemptSample, start, end time.Time, demoteStreaks map[string]int) []evidence.EvaluationRecord {
	type agg struct {
		strategyID                  string
		total, succeeded, fallbacks int
		latencies                   []int64
	}
	byKey := map[string]*agg{}

	for _, s := range samples {
		key := s.StrategyID + "|" + string(s.TaskKind)
		a, ok := byKey[key]
		if !ok {
			a = &agg{strategyID: s.StrategyID}
			byKey[key] = a
		}
		a.total++
		if s.Succeeded {
			a.succeeded++
		}
		if s.FallbackUsed {
			a.fallbacks++
		}
		a.latencies = append(a.latencies, s.LatencyMs)
	}

	var records []evidence.EvaluationRecord
	for _, a := range byKey {
		strategyID := a.strategyID

		successRate := ratio(a.succeeded, a.total)
		fallbackRate := ratio(a.fallbacks, a.total)
		p95 := percentile95(a.latencies)
		health := t.healthScore(successRate, p95, fallbackRate)

		rec := evidence.EvaluationRecord{
			StrategyID:     strategyID,
			WindowStart:    start,
			WindowEnd:      end,
			SuccessRate:    successRate,
			P95LatencyMs:   p95,
			FallbackRate:   fallbackRate,
			HealthScore:    health,
			Recommendation: t.classify(strategyID, a.total, health, start, end, demoteStreaks),
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].StrategyID < records[j].StrategyID })
	return records
}

func (t *Tuner) healthScore(successRate float64, p95LatencyMs int64, fallbackRate float64) float64 {
	invLatency := 0.0
	if p95LatencyMs > 0 {
		invLatency = 1000.0 / float64(p95LatencyMs)
		if invLatency > 1 {
			invLatency = 1
		}
	}
	return t.weights.SuccessRate*successRate + t.weights.InvLatency*invLatency + t.weights.InvFallback*(1-fallbackRate)
}

func (t *Tuner) classify(strategyID string, samples int, health float64, start, end time.Time, demoteStreaks map[string]int) evidence.Recommendation {
	if t.breached != nil && t.breached(strategyID, start, end) {
		demoteStreaks[strategyID] = t.thresholds.ConsecutiveWindows // force immediate demotion
		return evidence.RecommendDemote
	}
	if samples < t.thresholds.MinSamples {
		return evidence.RecommendCollectMoreData
	}
	if health >= t.thresholds.HighWatermark {
		demoteStreaks[strategyID] = 0
		return evidence.RecommendPromote
	}
	if health <= t.thresholds.LowWatermark {
		demoteStreaks[strategyID]++
		if demoteStreaks[strategyID] >= t.thresholds.ConsecutiveWindows {
			return evidence.RecommendDemote
		}
		return evidence.RecommendCollectMoreData
	}
	demoteStreaks[strategyID] = 0
	return evidence.RecommendCollectMoreData
}

// Proposal is one candidate PolicyOverride awaiting approval or application.
type Proposal struct {
	Override evidence.PolicyOverride
	Priority float64
}

// Propose builds the bounded proposal set from classified records,
// capped by MaxActions and filtered by MinPriorityScore.
func (t *Tuner) Propose(records []evidence.EvaluationRecord) []Proposal {
	var proposals []Proposal
	for _, r := range records {
		if r.Recommendation == evidence.RecommendCollectMoreData {
			continue
		}
		priority := priorityFor(r)
		if priority < t.thresholds.MinPriorityScore {
			continue
		}
		value := "promoted"
		if r.Recommendation == evidence.RecommendDemote {
			value = "advisor"
		}
		proposals = append(proposals, Proposal{
			Override: evidence.PolicyOverride{
				Scope: evidence.ScopeStrategy,
				Key:   r.StrategyID,
				Value: value,
			},
			Priority: priority,
		})
	}

	sort.Slice(proposals, func(i, j int) bool { return proposals[i].Priority > proposals[j].Priority })
	if len(proposals) > t.thresholds.MaxActions {
		proposals = proposals[:t.thresholds.MaxActions]
	}
	return proposals
}

func priorityFor(r evidence.EvaluationRecord) float64 {
	if r.Recommendation == evidence.RecommendDemote {
		return 1 - r.HealthScore
	}
	return r.HealthScore
}

// Apply writes every proposal as a reversible override under a shared
// snapshot_id, returning that snapshot_id for later rollback.
func (t *Tuner) Apply(proposals []Proposal, approvedBy string) (string, error) {
	snapshotID := uuid.New().String()
	now := time.Now().UTC()
	for _, p := range proposals {
		p.Override.SnapshotID = snapshotID
		p.Override.AppliedAt = now
		p.Override.ApprovedBy = approvedBy
		if err := t.store.AppendOverride(&p.Override); err != nil {
			return "", fmt.Errorf("failed to apply override for %q: %w", p.Override.Key, err)
		}
	}
	return snapshotID, nil
}

// ActiveAt reconstructs the set of overrides active immediately before the
// given snapshot_id, by replaying the override log and keeping, per key,
// only the last value applied strictly before that snapshot first appears.
func ActiveAt(all []evidence.PolicyOverride, snapshotID string) map[string]evidence.PolicyOverride {
	active := map[string]evidence.PolicyOverride{}
	for _, o := range all {
		if o.SnapshotID == snapshotID {
			break
		}
		active[o.Key] = o
	}
	return active
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func percentile95(latencies []int64) int64 {
	if len(latencies) == 0 {
		return 0
	}
	sorted := append([]int64(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
