// Package rules contains the filter-rule engine: selectors, fix sets, and the
// domain trie that maps requests to the fixes that apply to them.
package rules

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/AdguardTeam/golibs/container"
	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// Labels with a special meaning in the trie.
const (
	// wildcardLabel is the label of the leaf holding the entries of domain
	// patterns with a leading wildcard.
	wildcardLabel = wildcard

	// terminalLabel is the label of the leaf holding the entries of concrete
	// domains.
	terminalLabel = ""
)

// entry is a selector shape bound to a fix set.  Entries are interned, so every
// domain that uses the same path pattern, resource types, and fixes refers to
// the same entry.
type entry struct {
	sel   *Selector
	fixes *FixSet
	key   string
}

// newEntry returns an entry for the shape of sel and fixes.
func newEntry(sel *Selector, fixes *FixSet) (e *entry) {
	return &entry{
		sel: &Selector{
			Path:  sel.Path,
			Types: sel.Types,
		},
		fixes: fixes,
		key:   sel.shapeKey() + "|" + fixes.Key(),
	}
}

// selectorKey identifies a selector together with its fixes.
type selectorKey struct {
	entry  *entry
	domain string
}

// node is a node of the domain trie.  A node is either an interior node with
// children keyed by label, or a leaf with a set of entries.  Leaves are only
// found under [wildcardLabel] and [terminalLabel].
type node struct {
	children map[string]*node
	leaf     *container.MapSet[*entry]
}

// newInterior returns an empty interior node.
func newInterior() (n *node) {
	return &node{children: map[string]*node{}}
}

// isLeaf returns true if n is a leaf.
func (n *node) isLeaf() (ok bool) {
	return n.leaf != nil
}

// Store indexes selectors by their reversed domain labels.  Loading and
// removing fixes must not happen concurrently with anything else; once loaded,
// a Store is safe for concurrent lookups.
type Store struct {
	logger *slog.Logger
	root   *node

	// selectors is the canonical set of selectors.  Every entry reachable from
	// root is a value here.
	selectors map[selectorKey]*entry

	// entries interns entries by their keys.
	entries map[string]*entry

	// fixSets interns fix sets by their keys.
	fixSets map[string]*FixSet
}

// NewStore returns an empty store.  l must not be nil.
func NewStore(l *slog.Logger) (s *Store) {
	return &Store{
		logger:    l,
		root:      newInterior(),
		selectors: map[selectorKey]*entry{},
		entries:   map[string]*entry{},
		fixSets:   map[string]*FixSet{},
	}
}

// Len returns the number of selectors in s.
func (s *Store) Len() (n int) {
	return len(s.selectors)
}

// internFixSet returns the shared fix set equal to fixes.
func (s *Store) internFixSet(fixes *FixSet) (shared *FixSet) {
	shared, ok := s.fixSets[fixes.Key()]
	if !ok {
		shared = fixes
		s.fixSets[fixes.Key()] = shared
	}

	return shared
}

// internEntry returns the shared entry for the shape of sel and fixes.
func (s *Store) internEntry(sel *Selector, fixes *FixSet) (e *entry) {
	e = newEntry(sel, s.internFixSet(fixes))
	shared, ok := s.entries[e.key]
	if ok {
		return shared
	}

	s.entries[e.key] = e

	return e
}

// Add registers sel with fixes.  Adding the same selector with the same fixes
// twice has no effect.  fixes must not be empty.
func (s *Store) Add(sel *Selector, fixes *FixSet) {
	e := s.internEntry(sel, fixes)
	key := selectorKey{domain: sel.Domain, entry: e}
	if _, ok := s.selectors[key]; ok {
		return
	}

	s.selectors[key] = e

	labels := dns.SplitDomainName(sel.Domain)
	leafLabel := terminalLabel
	if len(labels) > 0 && labels[0] == wildcard {
		labels, leafLabel = labels[1:], wildcardLabel
	}

	n := s.root
	for i := len(labels) - 1; i >= 0; i-- {
		child, ok := n.children[labels[i]]
		if !ok {
			child = newInterior()
			n.children[labels[i]] = child
		}

		n = child
	}

	leaf, ok := n.children[leafLabel]
	if !ok {
		leaf = &node{leaf: container.NewMapSet[*entry]()}
		n.children[leafLabel] = leaf
	}

	leaf.leaf.Add(e)
}

// IsSiteEnabled returns true if any selector may apply to host.
func (s *Store) IsSiteEnabled(host string) (ok bool) {
	s.walk(NormalizeHost(host), func(_ *container.MapSet[*entry]) (cont bool) {
		ok = true

		return false
	})

	return ok
}

// Applicable returns the union of the fixes of all selectors matching the URL
// and the resource type.  fixes is nil if there are none.
func (s *Store) Applicable(u *url.URL, t ResourceType) (fixes *FixSet) {
	return s.ApplicableTo(NormalizeHost(u.Hostname()), PathSubject(u), t)
}

// ApplicableTo is like [Store.Applicable] but takes a normalized host and a
// path subject as returned by [NormalizeHost] and [PathSubject].
func (s *Store) ApplicableTo(host, subject string, t ResourceType) (fixes *FixSet) {
	matched := container.NewMapSet[*FixSet]()
	s.walk(host, func(leaf *container.MapSet[*entry]) (cont bool) {
		for _, e := range leaf.Values() {
			if e.sel.Match(subject, t) {
				matched.Add(e.fixes)
			}
		}

		return true
	})

	return union(matched)
}

// walk calls f for every leaf reachable by host: the wildcard leaves along the
// reversed labels of host and the terminal leaf of host itself.  It stops once
// f returns false.
func (s *Store) walk(host string, f func(leaf *container.MapSet[*entry]) (cont bool)) {
	labels := dns.SplitDomainName(host)

	n := s.root
	for i := len(labels) - 1; i >= 0; i-- {
		if w, ok := n.children[wildcardLabel]; ok && !f(w.leaf) {
			return
		}

		var ok bool
		n, ok = n.children[labels[i]]
		if !ok || n.isLeaf() {
			return
		}
	}

	if t, ok := n.children[terminalLabel]; ok {
		f(t.leaf)
	}
}

// NormalizeHost returns host as a lowercase ASCII domain name without the
// trailing dot.
func NormalizeHost(host string) (norm string) {
	host = strings.TrimSuffix(host, ".")
	norm, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// Keep hosts that IDNA rejects, such as ones with underscores,
		// matchable.
		return strings.ToLower(host)
	}

	return norm
}

// PathSubject returns the part of u matched by path patterns: the escaped path
// and the query, if any.
func PathSubject(u *url.URL) (subject string) {
	subject = u.EscapedPath()
	if subject == "" {
		subject = "/"
	}

	if u.RawQuery != "" || u.ForceQuery {
		subject += "?" + u.RawQuery
	}

	return subject
}
