// Package filter applies ANDed criteria (time range, kind glob, producing
// strategy) over evidence records for CLI inspection commands, adapted from
// the teacher's artefact-criteria pattern to axon's ArtifactRef/RunSummary
// shapes.
package filter

import (
	"path/filepath"

	"github.com/opsloop/axon/pkg/evidence"
)

// Criteria filters ArtifactRef entries. All non-zero fields are ANDed.
type Criteria struct {
	SinceUnixMs int64
	UntilUnixMs int64
	KindGlob    string
	ProducedBy  string
}

// Matches reports whether art satisfies every active criterion.
func (c *Criteria) Matches(art *evidence.ArtifactRef, producedAtUnixMs int64) bool {
	if c.SinceUnixMs > 0 && producedAtUnixMs < c.SinceUnixMs {
		return false
	}
	if c.UntilUnixMs > 0 && producedAtUnixMs > c.UntilUnixMs {
		return false
	}
	if c.KindGlob != "" {
		matched, err := filepath.Match(c.KindGlob, string(art.Kind))
		if err != nil || !matched {
			return false
		}
	}
	if c.ProducedBy != "" && art.ProducedBy != c.ProducedBy {
		return false
	}
	return true
}

// HasFilters reports whether any criterion is active.
func (c *Criteria) HasFilters() bool {
	return c.SinceUnixMs > 0 || c.UntilUnixMs > 0 || c.KindGlob != "" || c.ProducedBy != ""
}
