package diagnostics

import (
	"testing"

	"github.com/opsloop/axon/internal/mcp"
	"github.com/opsloop/axon/pkg/evidence"
)

func TestWalk_FlagsMissingConfigAsCritical(t *testing.T) {
	report := Walk(false, 1, nil, nil, 5, nil)
	if report.Findings[0].Severity != SeverityCritical {
		t.Fatalf("expected missing config to be critical, got %+v", report.Findings[0])
	}
}

func TestWalk_FlagsOpenBreaker(t *testing.T) {
	report := Walk(true, 1, []BreakerSnapshot{{ToolName: "x", State: mcp.StateOpen}}, nil, 5, nil)
	found := false
	for _, f := range report.Findings {
		if f.Area == "breaker:x" && f.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Error("expected an open breaker to be flagged")
	}
}

func TestWalk_SeverityScalesWithRecentFailureRate(t *testing.T) {
	runs := []evidence.RunSummary{
		{Outcome: evidence.OutcomeFailed},
		{Outcome: evidence.OutcomeFailed},
		{Outcome: evidence.OutcomeSucceeded},
	}
	report := Walk(true, 1, nil, runs, 5, nil)
	var recentFinding *Finding
	for i := range report.Findings {
		if report.Findings[i].Area == "recent_runs" {
			recentFinding = &report.Findings[i]
		}
	}
	if recentFinding == nil || recentFinding.Severity != SeverityCritical {
		t.Fatalf("expected majority-failed recent runs to be critical, got %+v", recentFinding)
	}
}

func TestWalk_NoServicesIsCritical(t *testing.T) {
	report := Walk(true, 0, nil, nil, 5, nil)
	found := false
	for _, f := range report.Findings {
		if f.Area == "services" && f.Severity == SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Error("expected zero registered services to be flagged critical")
	}
}
