package catalog_test

import (
	"context"
	"strings"
	"testing"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/martok/palefill/catalog"
	"github.com/martok/palefill/fix"
	"github.com/martok/palefill/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	r := catalog.NewRegistry()
	noop := func(_ *fix.Contributions) {}

	require.NoError(t, r.Register("a", noop))

	err := r.Register("a", noop)
	assert.ErrorIs(t, err, catalog.ErrDuplicateFix)
	testutil.AssertErrorMsg(t, `fix "a": duplicate fix`, err)

	err = r.Register("", noop)
	assert.ErrorIs(t, err, errors.ErrNoValue)

	err = r.Register("b", nil)
	assert.ErrorIs(t, err, errors.ErrNoValue)

	assert.Equal(t, []string{"a"}, r.IDs())

	var out fix.Contributions
	assert.True(t, r.Evaluate("a", &out))
	assert.False(t, r.Evaluate("b", &out))
}

func TestBuiltin(t *testing.T) {
	t.Parallel()

	r := catalog.Builtin()
	for _, id := range []string{
		"std-customElements",
		"std-PerformanceObserver",
		"std-queueMicrotask",
		"gh-compat",
		"gh-worker-csp",
		"sm-gh-extra",
		"gl-script",
	} {
		assert.Truef(t, r.Has(id), "fix %q", id)
	}

	assert.False(t, r.Has(rules.ScriptContentMarker))

	// Registering into a copy doesn't affect other copies.
	require.NoError(t, r.Register("extra", func(_ *fix.Contributions) {}))
	assert.False(t, catalog.Builtin().Has("extra"))
}

func TestBuiltin_compile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := slogutil.NewDiscardLogger()
	r := catalog.Builtin()

	t.Run("custom_elements", func(t *testing.T) {
		t.Parallel()

		m := fix.NewMerged(r, l, rules.NewFixSet("std-customElements"))
		assert.Empty(t, m.CSPAdditions(ctx))
		assert.True(t, strings.HasPrefix(m.SelfHash(ctx), "'sha256-"))

		markup := m.Markup(ctx)
		assert.True(t, strings.HasPrefix(markup, `<script type="application/javascript">`))
		assert.Contains(t, markup, "window.customElements = {")
		assert.NotContains(t, markup, " src=")
	})

	t.Run("github", func(t *testing.T) {
		t.Parallel()

		m := fix.NewMerged(r, l, rules.NewFixSet("gh-compat", "gh-worker-csp", "sm-gh-extra"))
		assert.Equal(t, []fix.CSPAddition{{
			Directive: "worker-src",
			Values:    []string{"github.githubassets.com"},
		}}, m.CSPAdditions(ctx))
		assert.NotEmpty(t, m.SelfHash(ctx))

		markup := m.Markup(ctx)
		assert.Contains(t, markup, `integrity="sha512-g4ztuyuFPzjTvIqYBeZdHEDaHz2K6RCz4RszsnL3m5ko4kiWCjB9W6uIScLkNr8l/BtC2dYiIFkOdOLDYBHLqQ=="`)
		assert.Contains(t, markup, "Element.prototype.toggleAttribute")
	})

	t.Run("gitlab_script", func(t *testing.T) {
		t.Parallel()

		m := fix.NewMerged(r, l, rules.NewFixSet(rules.ScriptContentMarker, "gl-script"))
		require.True(t, m.IsModifyScriptContent())

		got := m.Rewrite(ctx, "var v=o?.p,w=x??y;", false)
		assert.Equal(t, "var v=(o&&o.p),w=(x!=null?x:y);", got)
	})
}
