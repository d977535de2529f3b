package csp

import (
	"slices"
	"strings"
)

// Source keywords with a special meaning for merging.
const (
	sourceNone         = "'none'"
	sourceUnsafeInline = "'unsafe-inline'"
)

// DirectiveScriptSrc is the name of the directive that carries the hash of
// injected inline scripts.
const DirectiveScriptSrc = "script-src"

// Merge returns a copy of p extended with adds and the hash of the injected
// inline script, if any.  Values are appended to existing directives without
// duplicates, and missing directives are introduced.  selfHash alone never
// introduces a script-src directive: a policy that doesn't restrict scripts
// stays that way.  selfHash is also not added to a script-src that allows all
// inline scripts, since a hash would disable that.
func (p *Policy) Merge(adds []*Directive, selfHash string) (merged *Policy) {
	merged = p.Clone()
	for _, add := range adds {
		if len(add.Values) == 0 {
			continue
		}

		d := merged.Get(add.Name)
		if d == nil {
			d = &Directive{Name: add.Name}
			merged.Directives = append(merged.Directives, d)
		}

		d.add(add.Values...)
	}

	if selfHash != "" {
		if d := merged.Get(DirectiveScriptSrc); d != nil && !d.allowsAllInline() {
			d.add(selfHash)
		}
	}

	return merged
}

// add appends values missing from d.  A 'none' source is replaced, since it
// must be the only source of a directive.
func (d *Directive) add(values ...string) {
	if len(d.Values) == 1 && d.Values[0] == sourceNone {
		d.Values = d.Values[:0]
	}

	for _, v := range values {
		if !slices.Contains(d.Values, v) {
			d.Values = append(d.Values, v)
		}
	}
}

// allowsAllInline returns true if d allows inline scripts without nonces or
// hashes.
func (d *Directive) allowsAllInline() (ok bool) {
	if !slices.Contains(d.Values, sourceUnsafeInline) {
		return false
	}

	return !slices.ContainsFunc(d.Values, isNonceOrHash)
}

// isNonceOrHash returns true if v is a nonce or a hash source expression.
func isNonceOrHash(v string) (ok bool) {
	for _, p := range []string{"'nonce-", "'sha256-", "'sha384-", "'sha512-"} {
		if strings.HasPrefix(v, p) {
			return true
		}
	}

	return false
}
