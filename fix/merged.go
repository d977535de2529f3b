package fix

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/martok/palefill/rules"
)

// headTag matches the opening tag of the head element of an HTML document.
var headTag = regexp.MustCompile(`(?i)<head(?:\s[^>]*)?>`)

// CSPAddition is the list of sources a compiled fix set requires in a single
// CSP directive.
type CSPAddition struct {
	// Directive is the name of the directive.
	Directive string

	// Values are the deduplicated sources in the order of their first
	// appearance.
	Values []string
}

// Merged is a fix set compiled with a catalog.  It's compiled at most once,
// when any of its results is first requested, and is safe for concurrent use.
type Merged struct {
	catalog Catalog
	logger  *slog.Logger
	fixes   *rules.FixSet

	compileOnce *sync.Once

	markup       string
	selfHash     string
	csp          []CSPAddition
	replacements []*Replacement
}

// NewMerged returns a new *Merged for fixes.  c, l, and fixes must not be
// nil.
func NewMerged(c Catalog, l *slog.Logger, fixes *rules.FixSet) (m *Merged) {
	return &Merged{
		catalog:     c,
		logger:      l,
		fixes:       fixes,
		compileOnce: &sync.Once{},
	}
}

// Key returns the canonical key of the compiled fix set.
func (m *Merged) Key() (key string) {
	return m.fixes.Key()
}

// Fixes returns the compiled fix set.
func (m *Merged) Fixes() (fixes *rules.FixSet) {
	return m.fixes
}

// IsModifyScriptContent returns true if the fix set asks for the bodies of
// scripts to be rewritten, not only the ones of documents.
func (m *Merged) IsModifyScriptContent() (ok bool) {
	return m.fixes.Has(rules.ScriptContentMarker)
}

// Markup returns the script tags injected into documents.
func (m *Merged) Markup(ctx context.Context) (markup string) {
	m.ensureCompiled(ctx)

	return m.markup
}

// SelfHash returns the CSP hash source of the injected inline script, for
// example "'sha256-...'", or an empty string if there is no inline script.
func (m *Merged) SelfHash(ctx context.Context) (hash string) {
	m.ensureCompiled(ctx)

	return m.selfHash
}

// CSPAdditions returns the sources the fix set requires per directive, in the
// order of their first appearance.  The self-hash is not included, see
// [Merged.SelfHash].
func (m *Merged) CSPAdditions(ctx context.Context) (adds []CSPAddition) {
	m.ensureCompiled(ctx)

	adds = make([]CSPAddition, 0, len(m.csp))
	for _, a := range m.csp {
		adds = append(adds, CSPAddition{
			Directive: a.Directive,
			Values:    slices.Clone(a.Values),
		})
	}

	return adds
}

// Replacements returns the content replacements in the order of application.
func (m *Merged) Replacements(ctx context.Context) (rs []*Replacement) {
	m.ensureCompiled(ctx)

	return slices.Clone(m.replacements)
}

// ensureCompiled compiles m unless it's already compiled.
func (m *Merged) ensureCompiled(ctx context.Context) {
	m.compileOnce.Do(func() { m.compile(ctx) })
}

// compile evaluates the fixes in order and stores the results.
func (m *Merged) compile(ctx context.Context) {
	var out Contributions
	for _, id := range m.fixes.IDs() {
		if id == rules.ScriptContentMarker {
			continue
		}

		if !m.catalog.Evaluate(id, &out) {
			m.logger.WarnContext(
				ctx,
				"skipping fix",
				"id", id,
				slogutil.KeyError, ErrUnknownFix,
			)
		}
	}

	var markup, inline strings.Builder
	for _, s := range out.Scripts {
		if s.IsInline() {
			inline.WriteString(wrapInline(s.Source))
		} else {
			s.writeTag(&markup)
		}
	}

	if inline.Len() > 0 {
		sum := sha256.Sum256([]byte(inline.String()))
		m.selfHash = "'sha256-" + base64.StdEncoding.EncodeToString(sum[:]) + "'"

		markup.WriteString(`<script type="application/javascript">`)
		markup.WriteString(inline.String())
		markup.WriteString("</script>")
	}

	m.markup = markup.String()
	m.csp = mergeCSP(out.CSP)
	m.replacements = out.Replacements

	m.logger.DebugContext(
		ctx,
		"compiled fixes",
		"key", m.Key(),
		"scripts", len(out.Scripts),
		"csp", len(m.csp),
		"replacements", len(m.replacements),
	)
}

// mergeCSP groups sources by directive and removes duplicates, keeping the
// order of the first appearance.
func mergeCSP(sources []CSPSource) (adds []CSPAddition) {
	idx := map[string]int{}
	seen := container.NewMapSet[CSPSource]()
	for _, src := range sources {
		if seen.Has(src) {
			continue
		}

		seen.Add(src)

		i, ok := idx[src.Directive]
		if !ok {
			i = len(adds)
			idx[src.Directive] = i
			adds = append(adds, CSPAddition{Directive: src.Directive})
		}

		adds[i].Values = append(adds[i].Values, src.Value)
	}

	return adds
}

// Rewrite returns data with the compiled changes applied: the script markup is
// inserted after the head tag if inject is true, and then every replacement is
// applied to its first match.
func (m *Merged) Rewrite(ctx context.Context, data string, inject bool) (res string) {
	m.ensureCompiled(ctx)

	res = data
	if inject && m.markup != "" {
		loc := headTag.FindStringIndex(res)
		if loc != nil {
			res = res[:loc[1]] + m.markup + res[loc[1]:]
		} else {
			m.logger.DebugContext(ctx, "no head tag", "key", m.Key())
		}
	}

	for _, r := range m.replacements {
		var ok bool
		res, ok = r.Apply(res)
		if !ok {
			m.logger.DebugContext(ctx, "no match", "key", m.Key(), "replacement", r)
		}
	}

	return res
}

// String implements the [fmt.Stringer] interface for *Merged.
func (m *Merged) String() (s string) {
	return fmt.Sprintf("fixes %q", m.Key())
}
