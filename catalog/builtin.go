package catalog

import (
	"maps"

	"github.com/martok/palefill/fix"
)

// scriptGitHubCompat is the compatibility bundle GitHub serves to older
// browsers.
var scriptGitHubCompat = &fix.Script{
	Src:       "https://github.githubassets.com/assets/compat-838cedbb.js",
	Integrity: "sha512-g4ztuyuFPzjTvIqYBeZdHEDaHz2K6RCz4RszsnL3m5ko4kiWCjB9W6uIScLkNr8l/BtC2dYiIFkOdOLDYBHLqQ==",
}

// optionalChaining rewrites a simple optional member access "a?.b" into
// "(a&&a.b)".
var optionalChaining = fix.ReplaceRegexp(
	`([A-Za-z_$][\w$]*)\?\.([A-Za-z_$][\w$]*)`,
	"($1&&$1.$2)",
)

// nullishCoalescing rewrites a simple "a??b" into "(a!=null?a:b)".
var nullishCoalescing = fix.ReplaceRegexp(
	`([A-Za-z_$][\w$]*)\?\?([A-Za-z_$][\w$]*)`,
	"($1!=null?$1:$2)",
)

// scripts returns an effect adding the scripts.
func scripts(ss ...*fix.Script) (e Effect) {
	return func(out *fix.Contributions) {
		out.AddScripts(ss...)
	}
}

// inline returns an effect adding inline scripts with the sources.
func inline(srcs ...string) (e Effect) {
	ss := make([]*fix.Script, 0, len(srcs))
	for _, src := range srcs {
		ss = append(ss, fix.InlineScript(src))
	}

	return scripts(ss...)
}

// csp returns an effect adding a source to a CSP directive.
func csp(directive, value string) (e Effect) {
	return func(out *fix.Contributions) {
		out.AddCSP(directive, value)
	}
}

// replace returns an effect adding content replacements.
func replace(rs ...*fix.Replacement) (e Effect) {
	return func(out *fix.Contributions) {
		out.AddReplacements(rs...)
	}
}

// builtinEffects are the effects of the built-in fixes.
var builtinEffects = map[string]Effect{
	"std-customElements":      inline(polyfillCustomElements),
	"std-PerformanceObserver": inline(polyfillPerformanceObserver),
	"std-queueMicrotask":      inline(polyfillQueueMicrotask),
	"qmicrotask":              inline(polyfillQueueMicrotask),
	"gh-compat":               scripts(scriptGitHubCompat),
	"gh-temp-oldindex2":       inline(polyfillArrayAt),
	"gh-worker-csp":           csp("worker-src", "github.githubassets.com"),
	"sm-gh-extra":             inline(polyfillToggleAttribute, polyfillArrayFlat, polyfillArrayFlatMap),
	"sm-cookie":               inline(polyfillCookieStore),
	"gl-script":               replace(optionalChaining, nullishCoalescing),
	"godbolt-script":          replace(optionalChaining),
	"dhl-optchain":            replace(optionalChaining),
	"stackexchange-optchain":  replace(optionalChaining),
	"reddit-comments-regexp":  replace(fix.ReplaceLiteral(`/(?<=\s)#/`, `/\s#/`)),
}

// Builtin returns a new registry with the built-in fixes.
func Builtin() (r *Registry) {
	return &Registry{
		effects: maps.Clone(builtinEffects),
	}
}
