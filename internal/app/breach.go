package app

import (
	"time"

	"github.com/opsloop/axon/internal/axonerr"
	"github.com/opsloop/axon/internal/store"
	"github.com/opsloop/axon/internal/tuner"
)

// breachChecker implements tuner.BreachChecker (§4.8's strict rule): a
// strategy demotes to advisor regardless of health score if the window
// contains a P1 failure (a single policy_violation, the one fatal class that
// halts a run outright) or a P2 pattern (two or more governance_block
// skips, repeated policy rejection rather than a one-off).
func breachChecker(st *store.Store) tuner.BreachChecker {
	return func(strategyID string, windowStart, windowEnd time.Time) bool {
		attempts, err := st.AllAttempts()
		if err != nil {
			return false
		}
		governanceBlocks := 0
		for _, a := range attempts {
			if a.StrategyID != strategyID {
				continue
			}
			if a.StartedAt.Before(windowStart) || !a.StartedAt.Before(windowEnd) {
				continue
			}
			switch axonerr.Code(a.ErrorKind) {
			case axonerr.PolicyViolation:
				return true
			case axonerr.GovernanceBlock:
				governanceBlocks++
			}
		}
		return governanceBlocks >= 2
	}
}
