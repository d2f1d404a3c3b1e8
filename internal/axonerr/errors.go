// Package axonerr provides the unified, stable error model shared by every
// component of the kernel. Every error that can be surfaced in an
// ExecutionAttempt, a DeliveryBundle, or a CLI exit code is represented as an
// *Error carrying one of the Code constants below, so callers can classify
// failures without parsing strings.
package axonerr

import "fmt"

// Code is a stable error kind. The set is exhaustive and must not grow
// without a corresponding update to the CLI exit code table.
type Code string

const (
	MissingInput      Code = "missing_input"
	GovernanceBlock   Code = "governance_block"
	ApprovalRequired  Code = "approval_required"
	PolicyViolation   Code = "policy_violation"
	ServiceUnavailable Code = "service_unavailable"
	ToolTimeout       Code = "tool_timeout"
	ContractViolation Code = "contract_violation"
	Backpressure      Code = "backpressure"
	Internal          Code = "internal_error"
)

// Retryable reports whether an attempt carrying this code should advance the
// retry counter before falling back, per §7.
func (c Code) Retryable() bool {
	switch c {
	case ServiceUnavailable, ToolTimeout:
		return true
	default:
		return false
	}
}

// Fatal reports whether the code halts the whole run rather than advancing
// the fallback pointer to the next candidate.
func (c Code) Fatal() bool {
	return c == PolicyViolation
}

// ExitCode maps a Code onto the CLI's stable exit code table (§6).
func (c Code) ExitCode() int {
	switch c {
	case GovernanceBlock:
		return 10
	case MissingInput:
		return 11
	case ServiceUnavailable, ToolTimeout, ContractViolation, Internal:
		return 12
	case ApprovalRequired:
		return 13
	case PolicyViolation:
		return 14
	case Backpressure:
		return 15
	default:
		return 1
	}
}

// Error is the base typed error used throughout the kernel, grounded on
// original_source/core/errors.py's AgentSystemError: a stable code plus a
// human message plus free-form structured details for diagnostics.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an *Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a key/value pair to the error's Details map, creating
// it if necessary, and returns the receiver for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// As reports whether err is an *Error and, if so, returns it.
func As(err error) (*Error, bool) {
	ae, ok := err.(*Error)
	return ae, ok
}

// CodeOf extracts the Code from err, defaulting to Internal for errors that
// were not raised through this package.
func CodeOf(err error) Code {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return Internal
}
