package rules

import (
	"slices"

	"github.com/AdguardTeam/golibs/container"
)

// RemoveFixes removes ids from every fix set in s.  A fix set left with only
// [ScriptContentMarker] is treated as empty.  Selectors with empty fix sets are
// removed from s together with the trie branches that no longer lead to any
// selector.  removed is the number of selectors removed.
func (s *Store) RemoveFixes(ids ...string) (removed int) {
	drop := NewFixSet(ids...)
	if drop == nil {
		return 0
	}

	dead := container.NewMapSet[*entry]()
	updated := container.NewMapSet[*entry]()
	for _, e := range s.selectors {
		if dead.Has(e) || updated.Has(e) {
			continue
		}

		remaining := slices.DeleteFunc(e.fixes.IDs(), drop.Has)
		if len(remaining) == 1 && remaining[0] == ScriptContentMarker {
			remaining = nil
		}

		fixes := NewFixSet(remaining...)
		if fixes == nil {
			dead.Add(e)

			continue
		}

		if fixes.Key() != e.fixes.Key() {
			e.fixes = fixes
		}

		updated.Add(e)
	}

	if dead.Len() > 0 {
		for key, e := range s.selectors {
			if dead.Has(e) {
				delete(s.selectors, key)
				removed++
			}
		}

		s.root.purge(dead)
	}

	s.reindex()

	return removed
}

// purge removes dead entries from the leaves under n and deletes leaves and
// interior nodes left without entries.  It returns true if n itself is empty
// afterwards.
func (n *node) purge(dead *container.MapSet[*entry]) (empty bool) {
	if n.isLeaf() {
		for _, e := range n.leaf.Values() {
			if dead.Has(e) {
				n.leaf.Delete(e)
			}
		}

		return n.leaf.Len() == 0
	}

	for label, child := range n.children {
		if child.purge(dead) {
			delete(n.children, label)
		}
	}

	return len(n.children) == 0
}

// reindex rebuilds the interning tables from the selectors, since removing
// fixes changes the keys of the affected entries.  Entries that became equal
// are merged.
func (s *Store) reindex() {
	s.entries = map[string]*entry{}
	s.fixSets = map[string]*FixSet{}

	merged := map[*entry]*entry{}
	for _, e := range s.selectors {
		if _, ok := merged[e]; ok {
			continue
		}

		e.fixes = s.internFixSet(e.fixes)
		e.key = e.sel.shapeKey() + "|" + e.fixes.Key()
		if canon, ok := s.entries[e.key]; ok {
			merged[e] = canon
		} else {
			s.entries[e.key] = e
			merged[e] = e
		}
	}

	for key, e := range s.selectors {
		if canon := merged[e]; canon != e {
			delete(s.selectors, key)
			s.selectors[selectorKey{entry: canon, domain: key.domain}] = canon
		}
	}

	s.root.replace(merged)
}

// replace substitutes the entries in the leaves under n according to merged.
func (n *node) replace(merged map[*entry]*entry) {
	if !n.isLeaf() {
		for _, child := range n.children {
			child.replace(merged)
		}

		return
	}

	for _, e := range n.leaf.Values() {
		if canon, ok := merged[e]; ok && canon != e {
			n.leaf.Delete(e)
			n.leaf.Add(canon)
		}
	}
}
