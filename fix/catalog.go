// Package fix compiles fix sets into the changes applied to the responses of
// the matched sites: injected scripts, CSP additions, and content replacements.
package fix

import "github.com/AdguardTeam/golibs/errors"

// ErrUnknownFix is returned or logged when a fix id has no definition in the
// catalog.
const ErrUnknownFix errors.Error = "unknown fix"

// Catalog defines the effects of every known fix.
type Catalog interface {
	// Evaluate appends the effects of the fix with the given id to out.  ok
	// is false if the id is unknown, in which case out must not be changed.
	Evaluate(id string, out *Contributions) (ok bool)
}

// CSPSource is a value required in a CSP directive.
type CSPSource struct {
	// Directive is the name of the directive, for example "worker-src".
	Directive string

	// Value is a single source expression.
	Value string
}

// Contributions are the accumulated effects of the evaluated fixes, in the
// order of evaluation.
type Contributions struct {
	// Scripts are the scripts to inject into documents.
	Scripts []*Script

	// CSP are the sources to add to the CSP of the response.
	CSP []CSPSource

	// Replacements are the content substitutions applied to response bodies.
	Replacements []*Replacement
}

// AddScripts appends the scripts to c.
func (c *Contributions) AddScripts(scripts ...*Script) {
	c.Scripts = append(c.Scripts, scripts...)
}

// AddCSP appends a source for the directive to c.
func (c *Contributions) AddCSP(directive, value string) {
	c.CSP = append(c.CSP, CSPSource{
		Directive: directive,
		Value:     value,
	})
}

// AddReplacements appends the replacements to c.
func (c *Contributions) AddReplacements(rs ...*Replacement) {
	c.Replacements = append(c.Replacements, rs...)
}
