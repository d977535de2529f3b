package rules

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	// ErrEmptyDomain is returned when a selector has no domain part.
	ErrEmptyDomain errors.Error = "empty domain"

	// ErrBadDomain is returned when a selector domain is not a valid domain
	// name or has a wildcard anywhere except in the leftmost label.
	ErrBadDomain errors.Error = "bad domain"

	// ErrUnknownOption is returned for selector options other than document,
	// subdocument, and script.
	ErrUnknownOption errors.Error = "unknown option"

	// ErrEmptyFixList is returned for fix lines without any fix identifiers.
	ErrEmptyFixList errors.Error = "empty fix list"

	// ErrNoSelectors is returned for fix lines and definitions that aren't
	// preceded by any selectors.
	ErrNoSelectors errors.Error = "fix list without selectors"

	// ErrUnterminatedGroup is returned when the input ends with selectors that
	// have no fix line.
	ErrUnterminatedGroup errors.Error = "selector group without fix list"
)

// SyntaxError is a rule language error.  Line is zero for errors that aren't
// tied to a line of text input.
type SyntaxError struct {
	// Err is the underlying error.  It is one of the sentinel errors of this
	// package.
	Err error

	// Text is the offending selector or line.
	Text string

	// Line is the 1-based line number.
	Line int
}

// type check
var _ errors.Wrapper = (*SyntaxError)(nil)

// Error implements the [error] interface for *SyntaxError.
func (e *SyntaxError) Error() (msg string) {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %q: %s", e.Line, e.Text, e.Err)
	}

	return fmt.Sprintf("%q: %s", e.Text, e.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *SyntaxError.
func (e *SyntaxError) Unwrap() (err error) {
	return e.Err
}
