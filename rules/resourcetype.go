package rules

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// ResourceType is the role of a fetched resource.
type ResourceType uint8

// ResourceType values.
const (
	TypeDocument ResourceType = 1 << iota
	TypeSubdocument
	TypeScript
)

// Names of the resource types as used in the selector options.
const (
	optDocument    = "document"
	optSubdocument = "subdocument"
	optScript      = "script"
)

// String implements the [fmt.Stringer] interface for ResourceType.
func (t ResourceType) String() (s string) {
	switch t {
	case TypeDocument:
		return optDocument
	case TypeSubdocument:
		return optSubdocument
	case TypeScript:
		return optScript
	default:
		return fmt.Sprintf("!bad_resource_type_%d", uint8(t))
	}
}

// ParseResourceType returns the resource type named by s.
func ParseResourceType(s string) (t ResourceType, err error) {
	switch strings.ToLower(s) {
	case optDocument:
		return TypeDocument, nil
	case optSubdocument:
		return TypeSubdocument, nil
	case optScript:
		return TypeScript, nil
	default:
		return 0, fmt.Errorf("resource type %q: %w", s, errors.ErrBadEnumValue)
	}
}

// ResourceTypes is a set of resource types.
type ResourceTypes uint8

// DefaultResourceTypes is the set used by selectors without options.  It never
// includes scripts.
const DefaultResourceTypes = ResourceTypes(TypeDocument | TypeSubdocument)

// Has returns true if t is in the set.
func (ts ResourceTypes) Has(t ResourceType) (ok bool) {
	return ts&ResourceTypes(t) != 0
}

// String implements the [fmt.Stringer] interface for ResourceTypes.  The
// result uses the option syntax, e.g. "document,script".
func (ts ResourceTypes) String() (s string) {
	var names []string
	for _, t := range []ResourceType{TypeDocument, TypeSubdocument, TypeScript} {
		if ts.Has(t) {
			names = append(names, t.String())
		}
	}

	return strings.Join(names, ",")
}
