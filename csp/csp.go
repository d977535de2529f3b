// Package csp parses, serializes, and extends Content-Security-Policy header
// values.
package csp

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/stringutil"
)

// Syntax errors.
const (
	ErrBadDirectiveName  errors.Error = "bad directive name"
	ErrUnterminatedQuote errors.Error = "unterminated quoted value"
)

// SyntaxError is returned by [Parse] for malformed policies.
type SyntaxError struct {
	// Err is the underlying error.
	Err error

	// Offset is the byte offset of the offending token.
	Offset int
}

// type check
var _ errors.Wrapper = (*SyntaxError)(nil)

// Error implements the error interface for *SyntaxError.
func (err *SyntaxError) Error() (msg string) {
	return fmt.Sprintf("csp: offset %d: %s", err.Offset, err.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *SyntaxError.
func (err *SyntaxError) Unwrap() (unwrapped error) {
	return err.Err
}

// Directive is a single policy directive.
type Directive struct {
	// Name is the lowercase name of the directive.
	Name string

	// Values are the source expressions of the directive.  It's empty for
	// standalone directives like "upgrade-insecure-requests".
	Values []string
}

// clone returns a deep copy of d.
func (d *Directive) clone() (c *Directive) {
	return &Directive{
		Name:   d.Name,
		Values: slices.Clone(d.Values),
	}
}

// Policy is a parsed policy.  Directives keep the order of the header.
type Policy struct {
	Directives []*Directive
}

// Get returns the first directive with the given name or nil.
func (p *Policy) Get(name string) (d *Directive) {
	for _, d = range p.Directives {
		if d.Name == name {
			return d
		}
	}

	return nil
}

// Clone returns a deep copy of p.
func (p *Policy) Clone() (c *Policy) {
	c = &Policy{
		Directives: make([]*Directive, 0, len(p.Directives)),
	}

	for _, d := range p.Directives {
		c.Directives = append(c.Directives, d.clone())
	}

	return c
}

// String implements the [fmt.Stringer] interface for *Policy.
func (p *Policy) String() (s string) {
	b := &strings.Builder{}
	for i, d := range p.Directives {
		if i > 0 {
			b.WriteString("; ")
		}

		b.WriteString(d.Name)
		for _, v := range d.Values {
			stringutil.WriteToBuilder(b, " ", v)
		}
	}

	return b.String()
}
