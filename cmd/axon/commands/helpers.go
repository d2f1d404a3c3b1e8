package commands

import (
	"fmt"
	"strings"

	"github.com/opsloop/axon/internal/app"
	"github.com/opsloop/axon/internal/printer"
	"github.com/opsloop/axon/internal/resolver"
)

// resolveRunID expands a short run_id prefix typed on the command line to
// the one full run_id it names, scanning the store's full id space.
func resolveRunID(a *app.App, id string) (string, error) {
	return resolver.Resolve(id, func(prefix string) ([]string, error) {
		runs, err := a.Store.AllRuns()
		if err != nil {
			return nil, err
		}
		var matches []string
		for _, r := range runs {
			if strings.HasPrefix(r.RunID, prefix) {
				matches = append(matches, r.RunID)
			}
		}
		return matches, nil
	})
}

// friendlyResolveErr turns a resolver error into a printer.Error suitable
// for returning from a RunE, falling back to a generic not-found message.
func friendlyResolveErr(err error, id string) error {
	if ae, ok := err.(*resolver.AmbiguousError); ok {
		return printer.Error(fmt.Sprintf("ambiguous run id %q", id), resolver.FormatAmbiguousError(ae), nil)
	}
	return printer.Error(
		fmt.Sprintf("run %q not found", id),
		"No run with that id (or prefix) has been recorded.",
		[]string{"List all runs:\n  axon inspect"},
	)
}
