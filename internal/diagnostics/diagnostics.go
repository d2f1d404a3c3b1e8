// Package diagnostics implements Observability & Diagnostics (§4.9): a
// unified telemetry event shape, failure TopN aggregation, and a
// severity-ranked graph walk (config → services → breaker state → last N
// runs → failure hotspots; the process environment is not inspected),
// grounded on internal/orchestrator/health.go's HTTP
// health-check shape and internal/hoard/list.go's tabular-report pattern.
package diagnostics

import (
	"sort"
	"strconv"
	"time"

	"github.com/opsloop/axon/internal/mcp"
	"github.com/opsloop/axon/pkg/evidence"
)

// TelemetryEvent is the unified shape every significant action emits.
type TelemetryEvent struct {
	Timestamp time.Time `json:"ts"`
	Module    string    `json:"module"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	TraceID   string    `json:"trace_id"`
	RunID     string    `json:"run_id,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	ErrorCode string    `json:"error_code,omitempty"`
}

// Severity ranks a diagnostic finding.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Finding is one entry in the diagnostics report.
type Finding struct {
	Area     string
	Severity Severity
	Detail   string
}

// BreakerSnapshot is the observable state of one tool's breaker.
type BreakerSnapshot struct {
	ToolName string
	State    mcp.BreakerState
}

// Report holds the findings of a walk over config presence → registered
// services → breaker state → recent runs → failure hotspots, ranked
// critical first, then warning, then ok (walk order within one severity).
// The process environment is not inspected.
type Report struct {
	Findings []Finding
}

// Walk builds the diagnostics report. Each input is optional (nil-safe) so
// `axon diagnose` still produces a partial report when a subsystem is
// unreachable.
func Walk(configLoaded bool, servicesRegistered int, breakers []BreakerSnapshot, recentRuns []evidence.RunSummary, hotspotLimit int, hotspots []HotspotName) *Report {
	var findings []Finding

	if !configLoaded {
		findings = append(findings, Finding{Area: "config", Severity: SeverityCritical, Detail: "no axon.toml found; running on built-in defaults"})
	} else {
		findings = append(findings, Finding{Area: "config", Severity: SeverityOK, Detail: "configuration loaded"})
	}

	if servicesRegistered == 0 {
		findings = append(findings, Finding{Area: "services", Severity: SeverityCritical, Detail: "no capability services registered"})
	} else {
		findings = append(findings, Finding{Area: "services", Severity: SeverityOK, Detail: "capability services registered"})
	}

	openBreakers := 0
	for _, b := range breakers {
		if b.State == mcp.StateOpen {
			openBreakers++
			findings = append(findings, Finding{Area: "breaker:" + b.ToolName, Severity: SeverityWarning, Detail: "circuit open"})
		}
	}
	if openBreakers == 0 && len(breakers) > 0 {
		findings = append(findings, Finding{Area: "breakers", Severity: SeverityOK, Detail: "all breakers closed"})
	}

	failedRecent := 0
	for _, r := range recentRuns {
		if r.Outcome == evidence.OutcomeFailed || r.Outcome == evidence.OutcomeAborted {
			failedRecent++
		}
	}
	if len(recentRuns) > 0 {
		sev := SeverityOK
		if failedRecent > len(recentRuns)/2 {
			sev = SeverityCritical
		} else if failedRecent > 0 {
			sev = SeverityWarning
		}
		findings = append(findings, Finding{Area: "recent_runs", Severity: sev, Detail: countDetail(failedRecent, len(recentRuns))})
	}

	for i, h := range hotspots {
		if i >= hotspotLimit {
			break
		}
		findings = append(findings, Finding{Area: "hotspot:" + h.Name, Severity: SeverityWarning, Detail: "recurring failure source"})
	}

	rank := map[Severity]int{SeverityCritical: 0, SeverityWarning: 1, SeverityOK: 2}
	sort.SliceStable(findings, func(i, j int) bool { return rank[findings[i].Severity] < rank[findings[j].Severity] })
	return &Report{Findings: findings}
}

// HotspotName is the minimal shape Walk needs for a failure hotspot entry.
type HotspotName struct {
	Name string
}

func countDetail(failed, total int) string {
	if failed == 0 {
		return "no failures in recent runs"
	}
	return strconv.Itoa(failed) + " of " + strconv.Itoa(total) + " recent runs failed or aborted"
}
