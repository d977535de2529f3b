package policy_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/martok/palefill/catalog"
	"github.com/martok/palefill/internal/prefs"
	"github.com/martok/palefill/policy"
	"github.com/martok/palefill/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

// testLogger is the common logger for tests.
var testLogger = slogutil.NewDiscardLogger()

// testExtraRules are the rules added to the built-in ones in tests.
const testExtraRules = `
example.org
    std-customElements
a.example
    std-queueMicrotask,gh-compat,gh-worker-csp
`

// newService returns a service with the extra test rules and the storage of
// its preferences, subscribed to the changes.
func newService(
	tb testing.TB,
	cacheSize int,
) (ctx context.Context, svc *policy.Service, p *prefs.Storage) {
	tb.Helper()

	ctx = testutil.ContextWithTimeout(tb, testTimeout)
	p = prefs.New(testLogger)

	c := &policy.Config{
		Logger:          testLogger,
		Catalog:         catalog.Builtin(),
		Prefs:           p,
		ExtraRules:      testExtraRules,
		LookupCacheSize: cacheSize,
	}
	require.NoError(tb, c.Validate())

	svc = policy.New(ctx, c)
	p.Subscribe(svc.HandlePrefChanged)

	return ctx, svc, p
}

// mustURL parses rawURL.
func mustURL(tb testing.TB, rawURL string) (u *url.URL) {
	tb.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(tb, err)

	return u
}

// fixIDs returns the ids of the fixes for the URL or nil.
func fixIDs(
	ctx context.Context,
	tb testing.TB,
	svc *policy.Service,
	rawURL string,
	t rules.ResourceType,
) (ids []string) {
	tb.Helper()

	m := svc.Fixes(ctx, mustURL(tb, rawURL), t)
	if m == nil {
		return nil
	}

	return m.Fixes().IDs()
}

func TestService_Fixes_endToEnd(t *testing.T) {
	t.Parallel()

	ctx, svc, _ := newService(t, 0)

	u := mustURL(t, "https://example.org/")
	require.True(t, svc.IsSiteEnabled(u))

	m := svc.Fixes(ctx, u, rules.TypeDocument)
	require.NotNil(t, m)

	assert.Equal(t, []string{"std-customElements"}, m.Fixes().IDs())
	assert.False(t, m.IsModifyScriptContent())
	assert.Empty(t, m.CSPAdditions(ctx))
	assert.NotEmpty(t, m.SelfHash(ctx))

	assert.Same(t, m, svc.Fixes(ctx, u, rules.TypeDocument))
	assert.Nil(t, svc.Fixes(ctx, u, rules.TypeScript))
	assert.Nil(t, svc.Fixes(ctx, mustURL(t, "https://www.example.org/"), rules.TypeDocument))
}

func TestService_Fixes_exclusions(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 16} {
		ctx, svc, p := newService(t, size)

		const rawURL = "https://a.example/page"
		want := []string{"gh-compat", "gh-worker-csp", "std-queueMicrotask"}
		require.Equal(t, want, fixIDs(ctx, t, svc, rawURL, rules.TypeDocument))

		p.Set(ctx, policy.PrefExclusions, "a.example\n    gh-compat\n")
		assert.Equal(
			t,
			[]string{"gh-worker-csp", "std-queueMicrotask"},
			fixIDs(ctx, t, svc, rawURL, rules.TypeDocument),
		)

		p.Set(ctx, policy.PrefExclusions, "a.example/page\n    "+rules.ExcludeAll+"\n")
		assert.Nil(t, fixIDs(ctx, t, svc, rawURL, rules.TypeDocument))
		assert.Equal(t, want, fixIDs(ctx, t, svc, "https://a.example/other", rules.TypeDocument))

		// Exclusions don't disable the site.
		assert.True(t, svc.IsSiteEnabled(mustURL(t, rawURL)))

		p.Set(ctx, policy.PrefExclusions, "")
		assert.Equal(t, want, fixIDs(ctx, t, svc, rawURL, rules.TypeDocument))
	}
}

func TestService_Fixes_gitLab(t *testing.T) {
	t.Parallel()

	ctx, svc, p := newService(t, 0)

	const (
		page   = "https://gitlab.com/group/project"
		script = "https://gitlab.com/assets/webpack/main.12ab.chunk.js"
	)

	assert.Equal(t, []string{"std-customElements"}, fixIDs(ctx, t, svc, page, rules.TypeDocument))

	m := svc.Fixes(ctx, mustURL(t, script), rules.TypeScript)
	require.NotNil(t, m)

	assert.True(t, m.IsModifyScriptContent())
	assert.Equal(t, []string{rules.ScriptContentMarker, "gl-script"}, m.Fixes().IDs())

	require.NoError(t, p.SetJSON(ctx, policy.PrefGitLabInstances, []string{
		"https://git.example.net/",
		"",
	}))

	assert.Nil(t, fixIDs(ctx, t, svc, page, rules.TypeDocument))
	assert.Equal(
		t,
		[]string{"std-customElements"},
		fixIDs(ctx, t, svc, "https://git.example.net/", rules.TypeDocument),
	)
}

func TestService_Fixes_superseded(t *testing.T) {
	t.Parallel()

	ctx, svc, p := newService(t, 0)

	u := mustURL(t, "https://www.deepl.com/translator")
	require.True(t, svc.IsSiteEnabled(u))

	require.NoError(t, p.SetJSON(ctx, policy.PrefSupersededFixes, []string{"std-customElements"}))

	assert.False(t, svc.IsSiteEnabled(u))
	assert.Nil(t, svc.Fixes(ctx, u, rules.TypeDocument))
	assert.Equal(
		t,
		[]string{"gh-compat", "gh-worker-csp", "std-queueMicrotask"},
		fixIDs(ctx, t, svc, "https://a.example/", rules.TypeDocument),
	)

	// A broken value keeps the defaults.
	p.Set(ctx, policy.PrefSupersededFixes, "[")
	assert.True(t, svc.IsSiteEnabled(u))
}

func TestService_ModifyContentSecurityPolicy(t *testing.T) {
	t.Parallel()

	ctx, svc, _ := newService(t, 0)

	worker := svc.Fixes(ctx, mustURL(t, "https://github.com/socket-worker.js"), rules.TypeScript)
	require.NotNil(t, worker)

	res, err := svc.ModifyContentSecurityPolicy(ctx, "default-src 'self'; worker-src 'self'", worker)
	require.NoError(t, err)

	assert.Equal(t, "default-src 'self'; worker-src 'self' github.githubassets.com", res)

	page := svc.Fixes(ctx, mustURL(t, "https://github.com/"), rules.TypeDocument)
	require.NotNil(t, page)

	hash := page.SelfHash(ctx)
	require.NotEmpty(t, hash)

	res, err = svc.ModifyContentSecurityPolicy(ctx, "script-src github.githubassets.com", page)
	require.NoError(t, err)

	assert.Equal(t, "script-src github.githubassets.com "+hash, res)

	res, err = svc.ModifyContentSecurityPolicy(ctx, "img-src *", page)
	require.NoError(t, err)

	assert.Equal(t, "img-src *", res)

	const bad = "script-src 'self"
	res, err = svc.ModifyContentSecurityPolicy(ctx, bad, page)
	assert.Error(t, err)
	assert.Equal(t, bad, res)
}

func TestService_ModifyRequestData(t *testing.T) {
	t.Parallel()

	ctx, svc, _ := newService(t, 0)

	page := svc.Fixes(ctx, mustURL(t, "https://github.com/"), rules.TypeDocument)
	require.NotNil(t, page)

	res := svc.ModifyRequestData(ctx, "<html><head></head></html>", page, rules.TypeDocument)
	assert.True(t, strings.HasPrefix(res, "<html><head><script"))
	assert.Contains(t, res, "github.githubassets.com/assets/compat-838cedbb.js")

	res = svc.ModifyRequestData(ctx, "<html><head></head></html>", page, rules.TypeScript)
	assert.Equal(t, "<html><head></head></html>", res)
}

func TestService_ValidateExclusions(t *testing.T) {
	t.Parallel()

	ctx, svc, _ := newService(t, 0)

	n, err := svc.ValidateExclusions(ctx, "a.example\nb.example\n    *\n")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.ValidateExclusions(ctx, "a.example$image\n    *\n")
	assert.ErrorIs(t, err, rules.ErrUnknownOption)

	var synErr *rules.SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, 1, synErr.Line)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	var c *policy.Config
	assert.ErrorIs(t, c.Validate(), errors.ErrNoValue)

	c = &policy.Config{
		Logger:          testLogger,
		LookupCacheSize: -1,
	}

	err := c.Validate()
	require.Error(t, err)

	assert.ErrorIs(t, err, errors.ErrNoValue)
}
