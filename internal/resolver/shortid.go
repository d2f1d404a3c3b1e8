// Package resolver resolves a short id prefix (run_id, attempt_id) typed on
// the command line to the single full id it names, the same convenience the
// teacher gave artefact lookups, adapted to axon's run/attempt identifiers.
package resolver

import "fmt"

// MinShortIDLength is the minimum accepted prefix length, balancing
// usability against collision risk.
const MinShortIDLength = 6

// Lookup scans a set of full ids for ones sharing the given prefix.
type Lookup func(prefix string) ([]string, error)

// Resolve resolves a short id prefix to the one full id it uniquely
// identifies. A 36-character input with exactly four hyphens is treated as
// already-full and returned unchanged without a scan.
func Resolve(id string, scan Lookup) (string, error) {
	if isFullID(id) {
		return id, nil
	}
	if len(id) < MinShortIDLength {
		return "", fmt.Errorf("id must be at least %d characters (got %d)", MinShortIDLength, len(id))
	}

	matches, err := scan(id)
	if err != nil {
		return "", fmt.Errorf("failed to search for id: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: id}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: id, Matches: matches}
	}
}

func isFullID(id string) bool {
	if len(id) != 36 {
		return false
	}
	count := 0
	for _, r := range id {
		if r == '-' {
			count++
		}
	}
	return count == 4
}

// NotFoundError indicates no id matched the given prefix.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no id found matching %q", e.ShortID)
}

// AmbiguousError indicates more than one id matched the given prefix.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous id %q matches %d entries", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError renders a user-facing message listing up to 10
// matches for an AmbiguousError.
func FormatAmbiguousError(err *AmbiguousError) string {
	msg := fmt.Sprintf("ambiguous id %q matches %d entries:\n", err.ShortID, len(err.Matches))
	n := len(err.Matches)
	if n > 10 {
		n = 10
	}
	for i := 0; i < n; i++ {
		msg += fmt.Sprintf("  %s\n", err.Matches[i])
	}
	if len(err.Matches) > 10 {
		msg += fmt.Sprintf("  ...and %d more\n", len(err.Matches)-10)
	}
	msg += "\nuse a longer prefix to uniquely identify it."
	return msg
}

// IsNotFoundError reports whether err is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError reports whether err is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
