package mcp

import "sort"

// ToolStats is the historical performance record the router scores against.
type ToolStats struct {
	SuccessRate    float64 // 0-1
	InverseLatency float64 // 1/latency, pre-normalized by caller
}

// StatsLookup resolves a tool's historical stats; missing history returns
// the zero value.
type StatsLookup func(toolName string) ToolStats

// RouterWeights are the smart-routing coefficients (§4.5):
// composite = α·intent_match + β·historical_success + γ·inv_latency − δ·cost.
type RouterWeights struct {
	Intent     float64
	Success    float64
	InvLatency float64
	Cost       float64
}

// Router ranks candidate tools and filters out those whose breaker is open.
type Router struct {
	weights  RouterWeights
	stats    StatsLookup
	breakers *Registry
	topK     int
}

// NewRouter constructs a Router.
func NewRouter(weights RouterWeights, stats StatsLookup, breakers *Registry, topK int) *Router {
	return &Router{weights: weights, stats: stats, breakers: breakers, topK: topK}
}

type scoredTool struct {
	tool  ToolDescriptor
	score float64
}

// intentMatch scores how well a tool's intent tag matches the requested one;
// exact match scores 1, otherwise 0, and an empty requested intent scores 1
// for every tool. A future capability catalog could
// substitute a smarter match; this is deterministic and keeps ranking
// reproducible.
func intentMatch(tool ToolDescriptor, wantIntent string) float64 {
	if wantIntent == "" || tool.IntentTag == wantIntent {
		return 1
	}
	return 0
}

// Rank orders candidates by composite score, descending, filtering out any
// tool whose breaker currently disallows an attempt. Returns at most topK
// candidates.
func (r *Router) Rank(candidates []ToolDescriptor, wantIntent string) []ToolDescriptor {
	var scored []scoredTool
	for _, t := range candidates {
		if r.breakers != nil && !r.breakers.For(t.Name).Allow() {
			continue
		}
		stats := r.stats(t.Name)
		composite := r.weights.Intent*intentMatch(t, wantIntent) +
			r.weights.Success*stats.SuccessRate +
			r.weights.InvLatency*stats.InverseLatency -
			r.weights.Cost*t.Cost
		scored = append(scored, scoredTool{tool: t, score: composite})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].tool.Name < scored[j].tool.Name
	})

	k := r.topK
	if k <= 0 || k > len(scored) {
		k = len(scored)
	}
	out := make([]ToolDescriptor, k)
	for i := 0; i < k; i++ {
		out[i] = scored[i].tool
	}
	return out
}
