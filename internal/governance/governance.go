// Package governance implements the layer/risk/approval gates, the
// secret/safety scan, and the strict-mode contract lint of §4.6, grounded
// on original_source/core/policy.py's blocked-token scanning (CommandPolicy,
// PathSqlPolicy) and on internal/config/config.go's "invalid config fails
// the whole process start" discipline for StrictContractLint.
package governance

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/opsloop/axon/internal/axonerr"
	"github.com/opsloop/axon/pkg/evidence"
)

// Rules is the governance configuration bound into a RunContext.
type Rules struct {
	AllowedLayers     map[string]bool
	BlockedMaturity   map[string]bool
	MaxRiskLevel      evidence.RiskLevel
	RequireApproval   bool
	ApprovalDir       string
	SensitivePatterns []*regexp.Regexp
}

// CompileRules compiles a Rules set from raw configuration strings.
func CompileRules(allowedLayers, blockedMaturity []string, maxRisk evidence.RiskLevel, requireApproval bool, approvalDir string, sensitivePatterns []string) (*Rules, error) {
	r := &Rules{
		AllowedLayers:   toSet(allowedLayers),
		BlockedMaturity: toSet(blockedMaturity),
		MaxRiskLevel:    maxRisk,
		RequireApproval: requireApproval,
		ApprovalDir:     approvalDir,
	}
	for _, pat := range sensitivePatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("invalid sensitive pattern %q: %w", pat, err)
		}
		r.SensitivePatterns = append(r.SensitivePatterns, re)
	}
	return r, nil
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, i := range items {
		m[i] = true
	}
	return m
}

// CheckLayer reports whether a strategy's required layer is permitted.
func (r *Rules) CheckLayer(layer string) error {
	if !r.AllowedLayers[layer] {
		return axonerr.New(axonerr.GovernanceBlock, "layer %q is not in the allowed set for this run", layer)
	}
	return nil
}

// CheckMaturity reports whether a strategy's maturity tier is blocked.
func (r *Rules) CheckMaturity(m evidence.Maturity) error {
	if r.BlockedMaturity[string(m)] {
		return axonerr.New(axonerr.GovernanceBlock, "maturity %q is blocked for this run", m)
	}
	return nil
}

// CheckRisk reports whether a strategy's risk level exceeds the run's cap.
func (r *Rules) CheckRisk(risk evidence.RiskLevel) error {
	if !risk.AtMost(r.MaxRiskLevel) {
		return axonerr.New(axonerr.GovernanceBlock, "risk level %q exceeds max_risk_level %q", risk, r.MaxRiskLevel)
	}
	return nil
}

// Gate re-verifies every governance constraint for one candidate (§4.3's
// pre-check, "re-verified — policies may have changed since plan was
// built").
func (r *Rules) Gate(c *evidence.StrategyCandidate) error {
	if err := r.CheckLayer(c.RequiredLayer); err != nil {
		return err
	}
	if err := r.CheckMaturity(c.Maturity); err != nil {
		return err
	}
	return r.CheckRisk(c.RiskLevel)
}

// ScanForSecrets reports the first sensitive pattern match found in text, or
// "" if none. Used to block a strategy's outgoing input values before the
// strategy is invoked, grounded on policy.py's blocked-token scan.
func (r *Rules) ScanForSecrets(text string) string {
	for _, pat := range r.SensitivePatterns {
		if pat.MatchString(text) {
			return pat.String()
		}
	}
	return ""
}

// approvalFile is the on-disk monotonic counter gating publish-class side
// effects: each approved invocation decrements the counter, and an operator
// grants N future approvals by writing N into the file.
const approvalFile = "approvals.count"

// CheckApproval consumes one approval token from the approval directory,
// returning axonerr.ApprovalRequired if none remain. Required before any
// strategy whose side_effects include "publish" or "mutate" may run, when
// RequireApproval is set.
func (r *Rules) CheckApproval() error {
	if !r.RequireApproval {
		return nil
	}
	path := filepath.Join(r.ApprovalDir, approvalFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return axonerr.New(axonerr.ApprovalRequired, "no approvals granted: create %s with a positive integer count", path)
	}
	if err != nil {
		return fmt.Errorf("failed to read approval counter: %w", err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || count <= 0 {
		return axonerr.New(axonerr.ApprovalRequired, "approval counter at %s is exhausted or invalid", path)
	}

	if err := os.MkdirAll(r.ApprovalDir, 0o755); err != nil {
		return fmt.Errorf("failed to prepare approval directory: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(count-1)), 0o644)
}

// RequiresApproval reports whether a service's declared side effects
// include a publish-class mutation.
func RequiresApproval(sideEffects []string) bool {
	for _, e := range sideEffects {
		if e == "publish" || e == "mutate" {
			return true
		}
	}
	return false
}
