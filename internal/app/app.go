// Package app wires the configured components of one axon root into a
// single running instance: the evidence store, the service registry (with
// its sandbox runner), the strategy ranker, governance rules, the MCP
// runtime (router, breaker registry, retrying client), the autonomy engine,
// the kernel, and the feedback tuner. cmd/axon's commands build one App per
// invocation and drive it; nothing here is long-running beyond the process
// lifetime of a single CLI call.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opsloop/axon/internal/autonomy"
	"github.com/opsloop/axon/internal/config"
	"github.com/opsloop/axon/internal/governance"
	"github.com/opsloop/axon/internal/kernel"
	"github.com/opsloop/axon/internal/mcp"
	"github.com/opsloop/axon/internal/ranker"
	"github.com/opsloop/axon/internal/registry"
	"github.com/opsloop/axon/internal/sandbox"
	"github.com/opsloop/axon/internal/store"
	"github.com/opsloop/axon/internal/tuner"
	"github.com/opsloop/axon/pkg/evidence"
)

// App holds every wired component for one axon root.
type App struct {
	Cfg       *config.Config
	Store     *store.Store
	Registry  *registry.Registry
	Gov       *governance.Rules
	Ranker    *ranker.Ranker
	Breakers  *mcp.Registry
	Router    *mcp.Router
	MCPClient *mcp.Client
	Engine    *autonomy.Engine
	Kernel    *kernel.Kernel
	Tuner     *tuner.Tuner
	Live      *evidence.LiveBus
	Catalog   mcp.ToolCatalog
	pool      *kernel.Pool
}

// Build loads configuration (configPath empty searches "." and ".axon") and
// wires every component against it. The caller must call Close when done.
func Build(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return BuildFromConfig(ctx, cfg)
}

// BuildFromConfig wires every component against an already-loaded config,
// for callers (tests, `axon init` previews) that construct Config directly.
func BuildFromConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.Open(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to open evidence store at %q: %w", cfg.Root, err)
	}

	runner, runnerErr := sandbox.NewRunner(ctx, imageResolverFor(cfg.Services), artifactPersisterFor(st))
	var sb registry.Sandboxer
	if runnerErr == nil {
		sb = runner
	}
	// A missing Docker daemon is not fatal here: only services declaring
	// sandbox:true need it, and registry.Call surfaces a clear Internal
	// error the first time one is actually invoked.

	reg := registry.New(sb)
	live := newLiveBus(cfg)
	mcpBreakers := mcp.NewRegistry(cfg.Breaker.FailureThreshold, time.Duration(cfg.Breaker.CooldownSeconds)*time.Second,
		&breakerPersister{idx: st.Index()}, breakerTransitionNotifier(live))
	mcpRouter := mcp.NewRouter(mcp.RouterWeights{
		Intent:     cfg.Router.IntentWeight,
		Success:    cfg.Router.SuccessWeight,
		InvLatency: cfg.Router.InvLatencyWeight,
		Cost:       cfg.Router.CostWeight,
	}, toolStatsLookup(st, cfg.Tools), mcpBreakers, cfg.Router.TopK)
	mcpClient := mcp.NewClient(mcpRouter, mcpBreakers, toolInvoker(sb), mcp.RetryPolicy{
		MaxRetries:     cfg.Retry.MaxRetries,
		BackoffBase:    time.Duration(cfg.Retry.BackoffBaseMs) * time.Millisecond,
		BackoffFactor:  cfg.Retry.BackoffFactor,
		JitterFraction: cfg.Retry.JitterFraction,
		ChainDeadline:  time.Duration(cfg.Retry.ChainDeadlineMs) * time.Millisecond,
	}, nil)

	if err := registerServices(reg, cfg.Services, mcpClient, cfg.Tools, st); err != nil {
		st.Close()
		return nil, err
	}

	allowedLayers, blockedMaturity, maxRisk := unionGovernanceCaps(cfg.Profiles)
	gov, err := governance.CompileRules(allowedLayers, blockedMaturity, maxRisk, cfg.Governance.RequireApprovalForPublish,
		cfg.Governance.ApprovalDir, cfg.Governance.SensitivePatterns)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to compile governance rules: %w", err)
	}

	rk := ranker.New(reg, memoryLookup(st), cfg.Governance.MemoryPriorDefault, weightsByProfile(cfg.Profiles),
		ambiguityByProfile(cfg.Profiles), ranker.WithBlockedStrategies(cfg.Governance.BlockedStrategies),
		ranker.WithAllowedStrategies(cfg.Governance.AllowedStrategies), ranker.WithBaseScorer(ranker.KeywordScorer))

	engine := autonomy.New(reg, gov, st, live, defaultInputResolver, 60*time.Second)

	rules, resolveProfile, defaults, err := kernelInputs(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	pool := kernel.NewPool(cfg.WorkerPoolSize, cfg.WorkerPoolSize*4)
	kn := kernel.New(rules, resolveProfile, defaults, rk, engine, st, pool)

	tn := tuner.New(
		tuner.Weights{SuccessRate: 0.6, InvLatency: 0.25, InvFallback: 0.15},
		tuner.Thresholds{
			HighWatermark:      cfg.Tuner.HighWatermark,
			LowWatermark:       cfg.Tuner.LowWatermark,
			ConsecutiveWindows: cfg.Tuner.ConsecutiveWindows,
			MinSamples:         cfg.Tuner.MinSamples,
			MaxActions:         cfg.Tuner.MaxActions,
			MinPriorityScore:   cfg.Tuner.MinPriorityScore,
		},
		breachChecker(st), st,
	)

	return &App{
		Cfg: cfg, Store: st, Registry: reg, Gov: gov, Ranker: rk,
		Breakers: mcpBreakers, Router: mcpRouter, MCPClient: mcpClient,
		Engine: engine, Kernel: kn, Tuner: tn, Live: live,
		Catalog: toolCatalogFor(cfg.Tools), pool: pool,
	}, nil
}

// Close releases every resource opened by Build: the worker pool, the
// evidence store, and the live bus connection.
func (a *App) Close() error {
	a.pool.Close()
	if a.Live != nil {
		a.Live.Close()
	}
	return a.Store.Close()
}

func newLiveBus(cfg *config.Config) *evidence.LiveBus {
	if cfg.RedisAddr == "" {
		return nil
	}
	bus, err := evidence.NewLiveBus(&redis.Options{Addr: cfg.RedisAddr}, cfg.Root)
	if err != nil {
		return nil
	}
	return bus
}

func breakerTransitionNotifier(live *evidence.LiveBus) func(tool string, from, to mcp.BreakerState) {
	return func(tool string, from, to mcp.BreakerState) {
		if live == nil {
			return
		}
		_ = live.PublishBreakerTransition(context.Background(), &evidence.BreakerTransition{
			ToolName: tool, From: string(from), To: string(to),
		})
	}
}

func imageResolverFor(services []config.ServiceDescriptorConfig) sandbox.ImageResolver {
	byName := make(map[string]config.ServiceDescriptorConfig, len(services))
	for _, s := range services {
		byName[s.Name] = s
	}
	return func(serviceName string) (string, []string, error) {
		s, ok := byName[serviceName]
		if !ok || s.Image == "" {
			return "", nil, fmt.Errorf("service %q has no sandbox image configured", serviceName)
		}
		return s.Image, s.Cmd, nil
	}
}

// unionGovernanceCaps compiles the single global Rules instance as the most
// permissive union across every configured profile: allowedLayers is the
// union of what any profile permits, blockedMaturity is the intersection of
// what every profile blocks, and maxRisk is the highest ceiling any profile
// allows. Gate() is a shared safety net re-checked at attempt time, not a
// second per-profile filter — the ranker already enforced each RunContext's
// own (stricter) AllowedLayers/BlockedMaturity/MaxRiskLevel when it built
// the ExecutionPlan, so Gate() only needs to catch what no profile permits.
func unionGovernanceCaps(profiles map[string]config.ProfileConfig) (allowedLayers, blockedMaturity []string, maxRisk evidence.RiskLevel) {
	allowed := map[string]bool{}
	var blockedSets [][]string
	maxRisk = evidence.RiskLow
	first := true
	for _, p := range profiles {
		for _, l := range p.AllowedLayers {
			allowed[l] = true
		}
		blockedSets = append(blockedSets, p.BlockedMaturity)
		risk := evidence.RiskLevel(p.MaxRiskLevel)
		if first || maxRisk.Less(risk) {
			maxRisk = risk
			first = false
		}
	}
	for l := range allowed {
		allowedLayers = append(allowedLayers, l)
	}

	blockedCounts := map[string]int{}
	for _, set := range blockedSets {
		for _, m := range set {
			blockedCounts[m]++
		}
	}
	for m, count := range blockedCounts {
		if count == len(blockedSets) {
			blockedMaturity = append(blockedMaturity, m)
		}
	}
	return allowedLayers, blockedMaturity, maxRisk
}

// artifactPersisterFor adapts the evidence store's content-addressed
// artifact blob store into the sandbox runner's ArtifactPersister: a
// sandboxed invocation's captured combined stdout/stderr becomes one
// binary artifact.
func artifactPersisterFor(st *store.Store) sandbox.ArtifactPersister {
	return func(serviceName string, content []byte) (registry.ServiceResult, error) {
		hash, err := st.Artifacts().Put(content)
		if err != nil {
			return registry.ServiceResult{}, fmt.Errorf("failed to persist sandbox artifact for %q: %w", serviceName, err)
		}
		return registry.ServiceResult{
			Artifacts: []evidence.ArtifactRef{{
				URI:        "artifact://" + hash,
				Kind:       evidence.ArtifactBinary,
				SHA256:     hash,
				SizeBytes:  int64(len(content)),
				ProducedBy: serviceName,
			}},
		}, nil
	}
}

func weightsByProfile(profiles map[string]config.ProfileConfig) map[evidence.Profile]ranker.Weights {
	out := make(map[evidence.Profile]ranker.Weights, len(profiles))
	for name, p := range profiles {
		out[evidence.Profile(name)] = ranker.Weights{Base: p.BaseWeight, Memory: p.MemoryWeight}
	}
	return out
}

func ambiguityByProfile(profiles map[string]config.ProfileConfig) map[evidence.Profile]float64 {
	out := make(map[evidence.Profile]float64, len(profiles))
	for name, p := range profiles {
		out[evidence.Profile(name)] = p.AmbiguityThreshold
	}
	return out
}

// memoryLookup reduces the attempt history into a per-strategy success
// ratio, succeeded / (succeeded + failed) over every recorded attempt,
// computed once per App since a CLI invocation is short-lived; the next
// invocation re-reads the now-larger history. The ratio is not smoothed:
// a strategy with a single successful attempt scores 1.0.
func memoryLookup(st *store.Store) ranker.MemoryLookup {
	attempts, err := st.AllAttempts()
	if err != nil {
		return func(string) (float64, bool) { return 0, false }
	}
	type tally struct{ succeeded, total int }
	tallies := map[string]tally{}
	for _, a := range attempts {
		if a.Status != evidence.AttemptSucceeded && a.Status != evidence.AttemptFailed {
			continue
		}
		t := tallies[a.StrategyID]
		t.total++
		if a.Status == evidence.AttemptSucceeded {
			t.succeeded++
		}
		tallies[a.StrategyID] = t
	}
	return func(strategyID string) (float64, bool) {
		t, ok := tallies[strategyID]
		if !ok || t.total == 0 {
			return 0, false
		}
		return float64(t.succeeded) / float64(t.total), true
	}
}

// toolStatsLookup reduces the same history into the router's success-rate
// and normalized inverse-latency stats, keyed by tool name. A service's
// declared MCP tool name is assumed to equal its registry service name.
func toolStatsLookup(st *store.Store, tools []config.ToolDescriptorConfig) mcp.StatsLookup {
	attempts, err := st.AllAttempts()
	if err != nil {
		return func(string) mcp.ToolStats { return mcp.ToolStats{} }
	}
	type tally struct {
		succeeded, total int
		latencySum       int64
	}
	tallies := map[string]tally{}
	for _, a := range attempts {
		if a.Status != evidence.AttemptSucceeded && a.Status != evidence.AttemptFailed {
			continue
		}
		t := tallies[a.StrategyID]
		t.total++
		t.latencySum += a.Telemetry.LatencyMs
		if a.Status == evidence.AttemptSucceeded {
			t.succeeded++
		}
		tallies[a.StrategyID] = t
	}
	return func(toolName string) mcp.ToolStats {
		t, ok := tallies[toolName]
		if !ok || t.total == 0 {
			return mcp.ToolStats{}
		}
		avgLatency := float64(t.latencySum) / float64(t.total)
		inv := 0.0
		if avgLatency > 0 {
			inv = 1000.0 / avgLatency
		}
		return mcp.ToolStats{SuccessRate: float64(t.succeeded) / float64(t.total), InverseLatency: inv}
	}
}

func kernelInputs(cfg *config.Config) ([]kernel.ClassificationRule, kernel.ProfileResolver, map[evidence.Profile]kernel.ProfileDefaults, error) {
	rules := []kernel.ClassificationRule{
		{TaskKind: evidence.TaskKindPresentation, Prefixes: []string{"/presentation", "/slides"}},
		{TaskKind: evidence.TaskKindResearch, Prefixes: []string{"/research"}},
		{TaskKind: evidence.TaskKindDataQuery, Prefixes: []string{"/data", "/query"}},
		{TaskKind: evidence.TaskKindImage, Prefixes: []string{"/image"}},
		{TaskKind: evidence.TaskKindAutomation, Prefixes: []string{"/automate", "/run"}},
	}

	defaults := make(map[evidence.Profile]kernel.ProfileDefaults, len(cfg.Profiles))
	for name, p := range cfg.Profiles {
		defaults[evidence.Profile(name)] = kernel.ProfileDefaults{
			LearningEnabled:  p.LearningEnabled,
			MaxFallbackSteps: p.MaxFallbackSteps,
			AllowedLayers:    p.AllowedLayers,
			BlockedMaturity:  p.BlockedMaturity,
			MaxRiskLevel:     evidence.RiskLevel(p.MaxRiskLevel),
		}
	}

	byTaskKind := cfg.DefaultProfileByTaskKind
	resolve := func(kind evidence.TaskKind) evidence.Profile {
		if p, ok := byTaskKind[string(kind)]; ok {
			return evidence.Profile(p)
		}
		if p, ok := byTaskKind["other"]; ok {
			return evidence.Profile(p)
		}
		return evidence.ProfileAdaptive
	}

	return rules, resolve, defaults, nil
}

// defaultInputResolver resolves a candidate's required inputs from the
// task's explicit params, always seeding "text" from the task body since
// nearly every capability contract declares it.
func defaultInputResolver(required []string, task *evidence.TaskSpec) (map[string]string, bool, string) {
	params := map[string]string{"text": task.Text}
	for k, v := range task.ExplicitParams {
		params[k] = v
	}
	for _, r := range required {
		if _, ok := params[r]; !ok {
			return nil, false, r
		}
	}
	return params, true, ""
}

// DefaultClarify asks the operator to disambiguate between the top two
// candidates when the ranker flagged the plan ambiguous (§4.1's
// "clarification loop as a first-class outcome").
func DefaultClarify(plan *evidence.ExecutionPlan, task *evidence.TaskSpec) ([]string, []string, bool) {
	if !plan.Ambiguous || len(plan.Candidates) < 2 {
		return nil, nil, false
	}
	a, b := plan.Candidates[0], plan.Candidates[1]
	return []string{
		fmt.Sprintf("Strategies %q and %q are within the ambiguity threshold for this profile — which should handle this task?", a.StrategyID, b.StrategyID),
	}, nil, true
}

type breakerPersister struct {
	idx *store.Index
}

func (p *breakerPersister) Load(toolName string) (mcp.BreakerState, int, *time.Time, bool) {
	row, err := p.idx.LoadBreakerState(toolName)
	if err != nil || row == nil {
		return mcp.StateClosed, 0, nil, false
	}
	return mcp.BreakerState(row.State), row.ConsecutiveFailures, row.OpenedAt, true
}

func (p *breakerPersister) Save(toolName string, state mcp.BreakerState, consecutiveFailures int, openedAt *time.Time) {
	_ = p.idx.SaveBreakerState(store.BreakerRow{
		ToolName: toolName, State: string(state), ConsecutiveFailures: consecutiveFailures, OpenedAt: openedAt,
	}, time.Now().UTC())
}
