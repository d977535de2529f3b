package rules

import (
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/container"
)

// ScriptContentMarker is the fix identifier that marks a fix set as also
// applying to script content.  It has no effect of its own.
const ScriptContentMarker = "$script-content"

// ExcludeAll is the fix identifier that, in an exclusion rule, excludes every
// fix.
const ExcludeAll = "*"

// keySep separates fix identifiers in a fix set key.
const keySep = "+"

// FixSet is an immutable set of fix identifiers.  Fix sets loaded into a
// [Store] are interned, so that equal sets share one instance.
type FixSet struct {
	key string
	ids []string
}

// NewFixSet returns a fix set with the given identifiers.  Empty identifiers
// and duplicates are dropped.  fs is nil if no identifiers remain.
func NewFixSet(ids ...string) (fs *FixSet) {
	sorted := slices.Sorted(slices.Values(ids))
	sorted = slices.Compact(sorted)
	sorted = slices.DeleteFunc(sorted, func(id string) (ok bool) { return id == "" })
	if len(sorted) == 0 {
		return nil
	}

	return &FixSet{
		key: strings.Join(sorted, keySep),
		ids: sorted,
	}
}

// Key returns the canonical key of the set: the sorted identifiers joined with
// "+".
func (fs *FixSet) Key() (key string) {
	return fs.key
}

// IDs returns a sorted copy of the identifiers.
func (fs *FixSet) IDs() (ids []string) {
	return slices.Clone(fs.ids)
}

// Len returns the number of identifiers in fs.  fs may be nil.
func (fs *FixSet) Len() (n int) {
	if fs == nil {
		return 0
	}

	return len(fs.ids)
}

// Has returns true if fs contains id.  fs may be nil.
func (fs *FixSet) Has(id string) (ok bool) {
	if fs == nil {
		return false
	}

	_, ok = slices.BinarySearch(fs.ids, id)

	return ok
}

// String implements the [fmt.Stringer] interface for *FixSet.
func (fs *FixSet) String() (s string) {
	if fs == nil {
		return ""
	}

	return strings.Join(fs.ids, ",")
}

// Without returns the set of identifiers of fs that aren't in other.  res is
// nil if nothing remains.
func (fs *FixSet) Without(other *FixSet) (res *FixSet) {
	if other.Len() == 0 {
		return fs
	}

	remaining := slices.DeleteFunc(fs.IDs(), other.Has)

	return NewFixSet(remaining...)
}

// union returns the fix set with the identifiers of all sets.  res is nil if
// sets are all empty.
func union(sets *container.MapSet[*FixSet]) (res *FixSet) {
	if sets.Len() == 1 {
		return sets.Values()[0]
	}

	var ids []string
	for _, fs := range sets.Values() {
		ids = append(ids, fs.ids...)
	}

	return NewFixSet(ids...)
}
