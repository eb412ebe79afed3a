package detector

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Policy selects what happens after a violation has been reported.
type Policy int32

const (
	// PolicyReport reports the violation and lets the operation run.
	PolicyReport Policy = iota
	// PolicyPanic reports the violation, then panics with *ViolationError.
	PolicyPanic
)

// String returns the config spelling of a Policy.
func (p Policy) String() string {
	switch p {
	case PolicyReport:
		return "report"
	case PolicyPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// ParsePolicy parses "report" or "panic" (case-insensitive).
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "report":
		return PolicyReport, nil
	case "panic", "abort":
		return PolicyPanic, nil
	default:
		return PolicyReport, errors.WithHint(
			errors.Newf("detector: unknown policy %q", s),
			`valid policies are "report" and "panic"`,
		)
	}
}
