package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

// newTestEnv returns an environment built from the default configuration.
func newTestEnv(tb testing.TB) (env *environment) {
	tb.Helper()

	conf := newDefaultConfiguration()
	require.NoError(tb, conf.Validate())

	ctx := testutil.ContextWithTimeout(tb, testTimeout)
	env, err := newEnvironment(ctx, slogutil.NewDiscardLogger(), conf)
	require.NoError(tb, err)

	return env
}

func TestPrintLookups(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	out := &bytes.Buffer{}
	err := printLookups(ctx, env, []string{"https://github.com/", "https://unknown.example/"}, out)
	require.NoError(t, err)

	var results []*lookupResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 2)

	gh := results[0]
	assert.True(t, gh.Enabled)
	assert.Equal(t, "document", gh.Type)
	assert.Contains(t, gh.Fixes, "gh-compat")
	assert.Contains(t, gh.Fixes, "std-queueMicrotask")
	assert.True(t, strings.HasPrefix(gh.SelfHash, "'sha256-"))
	assert.Contains(t, gh.Markup, "<script")

	unknown := results[1]
	assert.False(t, unknown.Enabled)
	assert.Empty(t, unknown.Fixes)

	out.Reset()
	err = printLookups(ctx, env, nil, out)
	require.NoError(t, err)

	assert.Zero(t, out.Len())
}

func TestCheckExclusions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := testutil.ContextWithTimeout(t, testTimeout)
	dir := t.TempDir()

	goodPath := filepath.Join(dir, "good.txt")
	err := os.WriteFile(goodPath, []byte("github.com\n    sm-cookie\n"), 0o600)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	err = checkExclusions(ctx, env, goodPath, out)
	require.NoError(t, err)

	assert.Equal(t, goodPath+": 1 selectors ok\n", out.String())

	badPath := filepath.Join(dir, "bad.txt")
	err = os.WriteFile(badPath, []byte("github.com$image\n    sm-cookie\n"), 0o600)
	require.NoError(t, err)

	err = checkExclusions(ctx, env, badPath, out)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "line 1")
}

func TestRewriteDump(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	const dump = "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"Content-Security-Policy: script-src 'self'\r\n" +
		"Content-Length: 39\r\n" +
		"\r\n" +
		"<html><head></head><body></body></html>"

	respPath := filepath.Join(t.TempDir(), "resp.txt")
	err := os.WriteFile(respPath, []byte(dump), 0o600)
	require.NoError(t, err)

	conf := newDefaultConfiguration()
	conf.Lookup = []string{"https://github.com/"}
	conf.Rewrite = respPath

	out := &bytes.Buffer{}
	err = rewriteDump(ctx, env, conf, out)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "script-src 'self' 'sha256-")
	assert.Contains(t, got, "<head><script")
	assert.NotContains(t, got, "Content-Length: 39\r\n")
}
