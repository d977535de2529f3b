package prefs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/martok/palefill/internal/prefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

func TestStorage_Set(t *testing.T) {
	t.Parallel()

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	s := prefs.New(slogutil.NewDiscardLogger())

	var changed []string
	s.Subscribe(func(_ context.Context, name string) {
		changed = append(changed, name)
	})

	s.Set(ctx, "a", "1")
	s.Set(ctx, "a", "1")
	s.Set(ctx, "b", "")
	s.Set(ctx, "a", "")

	assert.Equal(t, []string{"a", "a"}, changed)
	assert.Empty(t, s.Pref("a"))
	assert.Empty(t, s.Names())
}

func TestStorage_JSONPref(t *testing.T) {
	t.Parallel()

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	s := prefs.New(slogutil.NewDiscardLogger())

	var list []string
	ok, err := s.JSONPref("list", &list)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetJSON(ctx, "list", []string{"x", "y"}))
	assert.Equal(t, `["x","y"]`, s.Pref("list"))

	ok, err = s.JSONPref("list", &list)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, list)

	s.Set(ctx, "list", "{")
	ok, err = s.JSONPref("list", &list)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestStorage_LoadFile(t *testing.T) {
	t.Parallel()

	const data = `
exclusions: |
  example.org
      *
gitlab.instances:
  - git.example.org
  - https://code.example.net/
empty:
`

	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	s := prefs.New(slogutil.NewDiscardLogger())

	var changed []string
	s.Subscribe(func(_ context.Context, name string) {
		changed = append(changed, name)
	})

	require.NoError(t, s.LoadFile(ctx, path))

	assert.Equal(t, "example.org\n    *\n", s.Pref("exclusions"))
	assert.Equal(t, `["git.example.org","https://code.example.net/"]`, s.Pref("gitlab.instances"))
	assert.Equal(t, []string{"exclusions", "gitlab.instances"}, s.Names())
	assert.Equal(t, []string{"exclusions", "gitlab.instances"}, changed)

	err := s.LoadFile(ctx, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStorage_LoadFile_reload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("exclusions: |\n  example.org\n      *\n"), 0o600))

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	s := prefs.New(slogutil.NewDiscardLogger())
	s.Set(ctx, "fixes.superseded", `["sm-cookie"]`)

	require.NoError(t, s.LoadFile(ctx, path))
	require.Equal(t, "example.org\n    *\n", s.Pref("exclusions"))
	require.Empty(t, s.Pref("fixes.superseded"))

	var changed []string
	s.Subscribe(func(_ context.Context, name string) {
		changed = append(changed, name)
	})

	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))
	require.NoError(t, s.LoadFile(ctx, path))

	assert.Empty(t, s.Pref("exclusions"))
	assert.Empty(t, s.Names())
	assert.Equal(t, []string{"exclusions"}, changed)
}
