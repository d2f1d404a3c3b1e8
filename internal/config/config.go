// Package config loads axon.toml: profiles, ranker weights, governance rules,
// breaker/retry parameters, and the capability pack declarations that seed
// the Service Registry. Loading goes through viper, which parses the file as
// TOML and lets environment variables override secrets/endpoints — but never
// risk or approval settings, which Load enforces with envOverrideDenylist
// below plus a check on every profile's max_risk_level.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// ProfileConfig holds the per-profile ranker weights and governance caps
// described in §4.1/§4.2/§4.6.
type ProfileConfig struct {
	BaseWeight        float64  `mapstructure:"base_weight"`
	MemoryWeight      float64  `mapstructure:"memory_weight"`
	MaxFallbackSteps  int      `mapstructure:"max_fallback_steps"`
	AmbiguityThreshold float64 `mapstructure:"ambiguity_threshold"`
	LearningEnabled   bool     `mapstructure:"learning_enabled"`
	AllowedLayers     []string `mapstructure:"allowed_layers"`
	BlockedMaturity   []string `mapstructure:"blocked_maturity"`
	MaxRiskLevel      string   `mapstructure:"max_risk_level"`
}

// GovernanceConfig holds process-wide governance rules (§4.6).
type GovernanceConfig struct {
	RequireApprovalForPublish bool     `mapstructure:"require_approval_for_publish"`
	ApprovalDir               string   `mapstructure:"approval_dir"`
	SensitivePatterns         []string `mapstructure:"sensitive_patterns"`
	BlockedStrategies         []string `mapstructure:"blocked_strategies"`
	AllowedStrategies         []string `mapstructure:"allowed_strategies"`
	StrictContractLint        bool     `mapstructure:"strict_contract_lint"`
	MemoryPriorDefault        float64  `mapstructure:"memory_prior_default"`
}

// BreakerConfig holds per-tool circuit breaker parameters (§4.5).
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"`
	CooldownSeconds  int `mapstructure:"cooldown_seconds"`
	WindowSeconds    int `mapstructure:"window_seconds"`
}

// RetryConfig holds retry/backoff parameters (§4.5).
type RetryConfig struct {
	MaxRetries     int     `mapstructure:"max_retries"`
	BackoffBaseMs  int     `mapstructure:"backoff_base_ms"`
	BackoffFactor  float64 `mapstructure:"backoff_factor"`
	JitterFraction float64 `mapstructure:"jitter_fraction"`
	ChainDeadlineMs int    `mapstructure:"chain_deadline_ms"`
}

// RouterConfig holds smart-routing weights and candidate pool size (§4.5).
type RouterConfig struct {
	IntentWeight     float64 `mapstructure:"intent_weight"`
	SuccessWeight    float64 `mapstructure:"success_weight"`
	InvLatencyWeight float64 `mapstructure:"inv_latency_weight"`
	CostWeight       float64 `mapstructure:"cost_weight"`
	TopK             int     `mapstructure:"top_k"`
}

// TunerConfig holds feedback/policy-tuner cadence and thresholds (§4.8).
type TunerConfig struct {
	WindowDays          int     `mapstructure:"window_days"`
	CadenceHours        int     `mapstructure:"cadence_hours"`
	HighWatermark       float64 `mapstructure:"high_watermark"`
	LowWatermark        float64 `mapstructure:"low_watermark"`
	ConsecutiveWindows  int     `mapstructure:"consecutive_windows"`
	MaxActions          int     `mapstructure:"max_actions"`
	MinPriorityScore    float64 `mapstructure:"min_priority_score"`
	MinSamples          int     `mapstructure:"min_samples"`
	Apply               bool    `mapstructure:"apply"`
}

// ServiceDescriptorConfig is the declarative form of a capability contract
// (§4.4), loaded from a capability pack and handed to the registry for
// contract lint + registration.
type ServiceDescriptorConfig struct {
	Name           string   `mapstructure:"name"`
	Description    string   `mapstructure:"description"`
	MatchTerms     []string `mapstructure:"match_terms"`
	TaskKinds      []string `mapstructure:"task_kinds"`
	RiskLevel      string   `mapstructure:"risk_level"`
	Maturity       string   `mapstructure:"maturity"`
	RequiredLayer  string   `mapstructure:"required_layer"`
	ExecutionMode  string   `mapstructure:"execution_mode"`
	SideEffects    []string `mapstructure:"side_effects"`
	Sandbox        bool     `mapstructure:"sandbox"`
	Image          string   `mapstructure:"image"`
	Cmd            []string `mapstructure:"cmd"`
	Fallback       string   `mapstructure:"fallback"`
	RequiredInputs []string `mapstructure:"required_inputs"`
	OptionalInputs []string `mapstructure:"optional_inputs"`
}

// ToolDescriptorConfig is the declarative form of an MCP tool candidate
// (§4.5), used by the smart router.
type ToolDescriptorConfig struct {
	Name      string  `mapstructure:"name"`
	Server    string  `mapstructure:"server"`
	Cost      float64 `mapstructure:"cost"`
	IntentTag string  `mapstructure:"intent_tag"`
}

// Config is the top-level axon.toml shape.
type Config struct {
	Root          string                             `mapstructure:"root"`
	WorkerPoolSize int                               `mapstructure:"worker_pool_size"`
	RedisAddr     string                             `mapstructure:"redis_addr"`
	DefaultProfileByTaskKind map[string]string        `mapstructure:"default_profile_by_task_kind"`
	Profiles      map[string]ProfileConfig           `mapstructure:"profiles"`
	Governance    GovernanceConfig                   `mapstructure:"governance"`
	Breaker       BreakerConfig                      `mapstructure:"breaker"`
	Retry         RetryConfig                        `mapstructure:"retry"`
	Router        RouterConfig                       `mapstructure:"router"`
	Tuner         TunerConfig                        `mapstructure:"tuner"`
	Services      []ServiceDescriptorConfig          `mapstructure:"services"`
	Tools         []ToolDescriptorConfig             `mapstructure:"tools"`
}

// envOverrideDenylist lists the config keys environment variables are
// forbidden from overriding, per §6: "Environment variables may override
// secrets and endpoints; they must not override risk or approval settings."
var envOverrideDenylist = []string{
	"governance.require_approval_for_publish",
	"governance.blocked_strategies",
	"governance.allowed_strategies",
	"governance.strict_contract_lint",
}

func init() {
	for name, p := range Default().Profiles {
		_ = name
		_ = p
	}
}

// Default returns the built-in configuration used when axon.toml is absent.
func Default() *Config {
	return &Config{
		Root:           ".axon",
		WorkerPoolSize: min(4, runtime.NumCPU()),
		RedisAddr:      "localhost:6379",
		DefaultProfileByTaskKind: map[string]string{
			"other": "adaptive",
		},
		Profiles: map[string]ProfileConfig{
			"strict": {
				BaseWeight: 0.7, MemoryWeight: 0.3,
				MaxFallbackSteps: 1, AmbiguityThreshold: 0.05,
				LearningEnabled: false,
				AllowedLayers:   []string{"core", "extended"},
				BlockedMaturity: []string{"experimental"},
				MaxRiskLevel:    "medium",
			},
			"adaptive": {
				BaseWeight: 0.6, MemoryWeight: 0.4,
				MaxFallbackSteps: 3, AmbiguityThreshold: 0.0,
				LearningEnabled: true,
				AllowedLayers:   []string{"core", "extended", "experimental"},
				BlockedMaturity: []string{},
				MaxRiskLevel:    "high",
			},
			"auto": {
				BaseWeight: 0.65, MemoryWeight: 0.35,
				MaxFallbackSteps: 3, AmbiguityThreshold: 0.05,
				LearningEnabled: true,
				AllowedLayers:   []string{"core", "extended"},
				BlockedMaturity: []string{"experimental"},
				MaxRiskLevel:    "medium",
			},
		},
		Governance: GovernanceConfig{
			RequireApprovalForPublish: true,
			ApprovalDir:               ".axon/approvals",
			SensitivePatterns:         []string{"(?i)api[_-]?key", "(?i)secret", "(?i)password"},
			StrictContractLint:        true,
			MemoryPriorDefault:        0.5,
		},
		Breaker: BreakerConfig{FailureThreshold: 3, CooldownSeconds: 300, WindowSeconds: 600},
		Retry:   RetryConfig{MaxRetries: 2, BackoffBaseMs: 200, BackoffFactor: 2, JitterFraction: 0.2, ChainDeadlineMs: 60000},
		Router:  RouterConfig{IntentWeight: 0.4, SuccessWeight: 0.3, InvLatencyWeight: 0.2, CostWeight: 0.1, TopK: 3},
		Tuner: TunerConfig{
			WindowDays: 7, CadenceHours: 24, HighWatermark: 0.85, LowWatermark: 0.4,
			ConsecutiveWindows: 3, MaxActions: 5, MinPriorityScore: 0.2, MinSamples: 5,
		},
	}
}

// Load reads axon.toml (parsed as TOML) from searchPaths, merges it over
// Default(), binds AXON_-prefixed environment variables for secrets and
// endpoints only, and validates the result.
func Load(configPath string, searchPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("axon")
	v.SetConfigType("toml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		if len(searchPaths) == 0 {
			searchPaths = []string{".", ".axon"}
		}
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix("AXON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read axon config: %w", err)
			}
		}
		// No file found: defaults only, still honoring env overrides below.
	}

	denied := append([]string{}, envOverrideDenylist...)
	for name := range v.GetStringMap("profiles") {
		denied = append(denied, "profiles."+name+".max_risk_level")
	}
	for _, key := range denied {
		if v.InConfig(key) && isEnvSet(key) {
			return nil, fmt.Errorf("environment variable override of %q is forbidden: risk and approval settings must come from the config file", key)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse axon config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid axon config: %w", err)
	}

	return &cfg, nil
}

func isEnvSet(key string) bool {
	envKey := "AXON_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
	_, ok := os.LookupEnv(envKey)
	return ok
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("root", d.Root)
	v.SetDefault("worker_pool_size", d.WorkerPoolSize)
	v.SetDefault("redis_addr", d.RedisAddr)
	v.SetDefault("default_profile_by_task_kind", d.DefaultProfileByTaskKind)
	v.SetDefault("profiles", d.Profiles)
	v.SetDefault("governance", d.Governance)
	v.SetDefault("breaker", d.Breaker)
	v.SetDefault("retry", d.Retry)
	v.SetDefault("router", d.Router)
	v.SetDefault("tuner", d.Tuner)
}

// Validate enforces the structural invariants of the config, failing process
// start when StrictContractLint is set and a capability pack entry is
// malformed — per §4.6's "skill contract lint... strict mode fails the whole
// process start."
func (c *Config) Validate() error {
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("worker_pool_size must be >= 1")
	}
	if len(c.Profiles) == 0 {
		return fmt.Errorf("no profiles defined")
	}
	for _, name := range []string{"strict", "adaptive", "auto"} {
		if _, ok := c.Profiles[name]; !ok {
			return fmt.Errorf("missing required profile %q", name)
		}
	}
	for name, p := range c.Profiles {
		if p.MaxFallbackSteps < 1 {
			return fmt.Errorf("profile %q: max_fallback_steps must be >= 1", name)
		}
	}

	if c.Governance.ApprovalDir != "" {
		c.Governance.ApprovalDir = filepath.Clean(c.Governance.ApprovalDir)
	}

	for i, svc := range c.Services {
		if err := svc.Validate(); err != nil {
			if c.Governance.StrictContractLint {
				return fmt.Errorf("service[%d] %q failed contract lint: %w", i, svc.Name, err)
			}
		}
	}

	return nil
}

// Validate lints a single declarative capability contract (§4.4): every
// registered service must declare inputs, decision gates implicitly via
// required/optional inputs, execution mode, fallback (nullable), outputs
// (kinds inferred from downstream artifact declarations), and at least one
// machine-checkable acceptance post-condition — here, simply that the
// contract is internally consistent.
func (s *ServiceDescriptorConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.TaskKinds) == 0 {
		return fmt.Errorf("task_kinds must declare at least one kind")
	}
	switch s.ExecutionMode {
	case "advisor", "operator":
	default:
		return fmt.Errorf("execution_mode must be 'advisor' or 'operator', got %q", s.ExecutionMode)
	}
	switch s.RiskLevel {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("risk_level must be 'low', 'medium', or 'high', got %q", s.RiskLevel)
	}
	switch s.Maturity {
	case "experimental", "beta", "stable":
	default:
		return fmt.Errorf("maturity must be 'experimental', 'beta', or 'stable', got %q", s.Maturity)
	}
	if s.Sandbox && s.ExecutionMode != "operator" {
		return fmt.Errorf("sandbox may only be set for operator-mode services")
	}
	if s.Sandbox && s.Image == "" {
		return fmt.Errorf("sandbox services must declare an image")
	}
	return nil
}
