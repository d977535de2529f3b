package rules

import (
	"context"
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// entryFor returns the entry of the selector with the given domain.
func entryFor(tb testing.TB, s *Store, domain string) (e *entry) {
	tb.Helper()

	for key, e := range s.selectors {
		if key.domain == domain {
			return e
		}
	}

	require.Failf(tb, "no selector", "domain %q", domain)

	return nil
}

// reachable returns all entries reachable from n.
func reachable(n *node) (entries []*entry) {
	if n.isLeaf() {
		return n.leaf.Values()
	}

	for _, c := range n.children {
		entries = append(entries, reachable(c)...)
	}

	return entries
}

// hasEmptyNodes returns true if there are nodes without children or entries
// under n.
func hasEmptyNodes(n *node) (ok bool) {
	if n.isLeaf() {
		return n.leaf.Len() == 0
	}

	for _, c := range n.children {
		if (!c.isLeaf() && len(c.children) == 0) || hasEmptyNodes(c) {
			return true
		}
	}

	return false
}

func TestStore_sharing(t *testing.T) {
	t.Parallel()

	s := NewStore(slogutil.NewDiscardLogger())
	_, _, err := s.AddRulesFromString(context.Background(), `
a.example
    fix-1,fix-2
b.example
    fix-2,fix-1
c.example$script
    fix-1,fix-2
`, true)
	require.NoError(t, err)

	a, b, c := entryFor(t, s, "a.example"), entryFor(t, s, "b.example"), entryFor(t, s, "c.example")

	assert.Same(t, a, b)
	assert.Same(t, a.fixes, b.fixes)

	assert.NotSame(t, a, c)
	assert.Same(t, a.fixes, c.fixes)

	assert.Len(t, s.entries, 2)
	assert.Len(t, s.fixSets, 1)

	sel, err := ParseSelector("a.example")
	require.NoError(t, err)

	s.Add(sel, NewFixSet("fix-1", "fix-2"))
	assert.Equal(t, 3, s.Len())
}

func TestStore_RemoveFixes_cascade(t *testing.T) {
	t.Parallel()

	s := NewStore(slogutil.NewDiscardLogger())
	_, _, err := s.AddRulesFromString(context.Background(), `
deep.sub.example.org
*.other.example.org
    gone
keep.example.org
    kept,gone
script.example.net/*.js$script
    $script-content,gone
`, true)
	require.NoError(t, err)

	removed := s.RemoveFixes("gone")
	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, s.Len())

	for _, e := range reachable(s.root) {
		var found bool
		for _, v := range s.selectors {
			found = found || v == e
		}

		assert.True(t, found, "entry %q is reachable but not registered", e.key)
	}

	assert.False(t, hasEmptyNodes(s.root))

	require.Contains(t, s.root.children, "org")
	assert.NotContains(t, s.root.children, "net")

	example := s.root.children["org"].children["example"]
	require.NotNil(t, example)

	assert.Len(t, example.children, 1)
	assert.Contains(t, example.children, "keep")

	kept := entryFor(t, s, "keep.example.org")
	assert.Equal(t, []string{"kept"}, kept.fixes.IDs())
	assert.Same(t, kept.fixes, s.fixSets["kept"])
	assert.Same(t, kept, s.entries[kept.key])
}

func TestStore_RemoveFixes_merge(t *testing.T) {
	t.Parallel()

	s := NewStore(slogutil.NewDiscardLogger())
	_, _, err := s.AddRulesFromString(context.Background(), `
a.example
    common,x
a.example
b.example
    common,y
`, true)
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	removed := s.RemoveFixes("x", "y")
	assert.Zero(t, removed)
	assert.Equal(t, 2, s.Len())

	a, b := entryFor(t, s, "a.example"), entryFor(t, s, "b.example")
	assert.Same(t, a, b)
	assert.Len(t, s.entries, 1)

	leaf := s.root.children["example"].children["a"].children[terminalLabel]
	require.NotNil(t, leaf)

	assert.Equal(t, 1, leaf.leaf.Len())
}
