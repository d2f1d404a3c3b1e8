package governance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opsloop/axon/internal/axonerr"
	"github.com/opsloop/axon/pkg/evidence"
)

func testRules(t *testing.T) *Rules {
	t.Helper()
	r, err := CompileRules([]string{"core"}, []string{"experimental"}, evidence.RiskMedium, true, t.TempDir(), []string{"(?i)api[_-]?key"})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return r
}

func TestGate_BlocksDisallowedLayer(t *testing.T) {
	r := testRules(t)
	c := &evidence.StrategyCandidate{RequiredLayer: "extended", Maturity: evidence.MaturityStable, RiskLevel: evidence.RiskLow}
	err := r.Gate(c)
	if axonerr.CodeOf(err) != axonerr.GovernanceBlock {
		t.Fatalf("expected governance_block, got %v", err)
	}
}

func TestGate_BlocksBlockedMaturity(t *testing.T) {
	r := testRules(t)
	c := &evidence.StrategyCandidate{RequiredLayer: "core", Maturity: evidence.MaturityExperimental, RiskLevel: evidence.RiskLow}
	if err := r.Gate(c); axonerr.CodeOf(err) != axonerr.GovernanceBlock {
		t.Fatalf("expected governance_block for blocked maturity, got %v", err)
	}
}

func TestGate_BlocksExcessiveRisk(t *testing.T) {
	r := testRules(t)
	c := &evidence.StrategyCandidate{RequiredLayer: "core", Maturity: evidence.MaturityStable, RiskLevel: evidence.RiskHigh}
	if err := r.Gate(c); axonerr.CodeOf(err) != axonerr.GovernanceBlock {
		t.Fatalf("expected governance_block for excessive risk, got %v", err)
	}
}

func TestGate_AllowsCompliantCandidate(t *testing.T) {
	r := testRules(t)
	c := &evidence.StrategyCandidate{RequiredLayer: "core", Maturity: evidence.MaturityStable, RiskLevel: evidence.RiskLow}
	if err := r.Gate(c); err != nil {
		t.Fatalf("expected compliant candidate to pass, got %v", err)
	}
}

func TestScanForSecrets_DetectsPattern(t *testing.T) {
	r := testRules(t)
	if match := r.ScanForSecrets("here is my API_KEY=xyz"); match == "" {
		t.Error("expected secret pattern to be detected")
	}
	if match := r.ScanForSecrets("nothing sensitive here"); match != "" {
		t.Errorf("expected no match, got %q", match)
	}
}

func TestCheckApproval_RequiresCounterFile(t *testing.T) {
	r := testRules(t)
	if err := r.CheckApproval(); axonerr.CodeOf(err) != axonerr.ApprovalRequired {
		t.Fatalf("expected approval_required with no counter file, got %v", err)
	}
}

func TestCheckApproval_ConsumesOneToken(t *testing.T) {
	r := testRules(t)
	if err := os.WriteFile(filepath.Join(r.ApprovalDir, approvalFile), []byte("2"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := r.CheckApproval(); err != nil {
		t.Fatalf("first approval should succeed: %v", err)
	}
	if err := r.CheckApproval(); err != nil {
		t.Fatalf("second approval should succeed: %v", err)
	}
	if err := r.CheckApproval(); axonerr.CodeOf(err) != axonerr.ApprovalRequired {
		t.Fatalf("expected approval_required after exhausting counter, got %v", err)
	}
}

func TestRequiresApproval(t *testing.T) {
	if !RequiresApproval([]string{"publish"}) {
		t.Error("expected publish to require approval")
	}
	if RequiresApproval([]string{"log"}) {
		t.Error("expected non-mutating side effects not to require approval")
	}
}
