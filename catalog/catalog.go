// Package catalog contains the registry of fix definitions and the built-in
// fixes.
package catalog

import (
	"fmt"
	"slices"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/martok/palefill/fix"
)

// ErrDuplicateFix is returned when a fix id is registered twice.
const ErrDuplicateFix errors.Error = "duplicate fix"

// Effect appends the effects of a fix to out.
type Effect func(out *fix.Contributions)

// Registry is a [fix.Catalog] backed by a table of effects.  It must not be
// changed after it's first used for evaluation.
type Registry struct {
	effects map[string]Effect
}

// type check
var _ fix.Catalog = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() (r *Registry) {
	return &Registry{
		effects: map[string]Effect{},
	}
}

// Register adds the effect of the fix with the given id.
func (r *Registry) Register(id string, e Effect) (err error) {
	if id == "" {
		return fmt.Errorf("fix id: %w", errors.ErrNoValue)
	} else if e == nil {
		return fmt.Errorf("fix %q: effect: %w", id, errors.ErrNoValue)
	} else if _, ok := r.effects[id]; ok {
		return fmt.Errorf("fix %q: %w", id, ErrDuplicateFix)
	}

	r.effects[id] = e

	return nil
}

// Evaluate implements the [fix.Catalog] interface for *Registry.
func (r *Registry) Evaluate(id string, out *fix.Contributions) (ok bool) {
	e, ok := r.effects[id]
	if ok {
		e(out)
	}

	return ok
}

// Has returns true if r knows the fix with the given id.
func (r *Registry) Has(id string) (ok bool) {
	_, ok = r.effects[id]

	return ok
}

// IDs returns the sorted ids of the registered fixes.
func (r *Registry) IDs() (ids []string) {
	ids = make([]string, 0, len(r.effects))
	for id := range r.effects {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}
