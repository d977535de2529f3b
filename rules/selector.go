package rules

import (
	"strings"

	"github.com/AdguardTeam/golibs/netutil"
)

// wildcard is the wildcard character of domain and path patterns.
const wildcard = "*"

// PathPattern matches the path and query part of a URL.  A pattern without
// wildcards matches only the exact string.  Otherwise it is split on the
// wildcards into a head, which the subject must start with, a tail, which the
// subject must end with, and infixes, which must occur in order in between.
type PathPattern struct {
	raw      string
	segments []string
}

// NewPathPattern returns a pattern for raw.
func NewPathPattern(raw string) (p *PathPattern) {
	p = &PathPattern{raw: raw}
	if strings.Contains(raw, wildcard) {
		p.segments = strings.Split(raw, wildcard)
	}

	return p
}

// String implements the [fmt.Stringer] interface for *PathPattern.
func (p *PathPattern) String() (s string) {
	return p.raw
}

// Match returns true if subject matches the pattern.
func (p *PathPattern) Match(subject string) (ok bool) {
	if p.segments == nil {
		return subject == p.raw
	}

	head, tail := p.segments[0], p.segments[len(p.segments)-1]
	if len(subject) < len(head)+len(tail) ||
		!strings.HasPrefix(subject, head) ||
		!strings.HasSuffix(subject, tail) {
		return false
	}

	rest := subject[len(head) : len(subject)-len(tail)]
	for _, infix := range p.segments[1 : len(p.segments)-1] {
		i := strings.Index(rest, infix)
		if i < 0 {
			return false
		}

		rest = rest[i+len(infix):]
	}

	return true
}

// Selector is a parsed match expression of the form
// "domain[/path][$opt,opt,...]".  Selectors are immutable.
type Selector struct {
	// Path is the optional path pattern.  A nil Path matches any path.
	Path *PathPattern

	// Domain is the lowercase domain.  It may start with a wildcard label, as
	// in "*.example.com".
	Domain string

	// Types is the set of resource types the selector applies to.
	Types ResourceTypes
}

// ParseSelector parses a selector.  Any error returned is a *SyntaxError.
func ParseSelector(s string) (sel *Selector, err error) {
	body, types, err := cutOptions(s)
	if err != nil {
		return nil, &SyntaxError{Text: s, Err: err}
	}

	domain, path, hasPath := strings.Cut(body, "/")
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return nil, &SyntaxError{Text: s, Err: ErrEmptyDomain}
	}

	err = validateDomainPattern(domain)
	if err != nil {
		return nil, &SyntaxError{Text: s, Err: err}
	}

	sel = &Selector{
		Domain: domain,
		Types:  types,
	}

	if hasPath {
		sel.Path = NewPathPattern("/" + path)
	}

	return sel, nil
}

// cutOptions splits the "$opt,..." suffix off s and parses it.
func cutOptions(s string) (body string, types ResourceTypes, err error) {
	i := strings.LastIndexByte(s, '$')
	if i < 0 {
		return s, DefaultResourceTypes, nil
	}

	body = s[:i]
	for _, opt := range strings.Split(s[i+1:], ",") {
		var t ResourceType
		t, err = ParseResourceType(strings.TrimSpace(opt))
		if err != nil {
			return "", 0, ErrUnknownOption
		}

		types |= ResourceTypes(t)
	}

	return body, types, nil
}

// validateDomainPattern returns an error if domain isn't a domain name with an
// optional leading wildcard label.
func validateDomainPattern(domain string) (err error) {
	if domain == wildcard {
		return nil
	}

	name := strings.TrimPrefix(domain, wildcard+".")
	if strings.Contains(name, wildcard) || netutil.ValidateDomainName(name) != nil {
		return ErrBadDomain
	}

	return nil
}

// Match returns true if the path subject and the resource type match sel.  The
// domain isn't checked, since the store only hands out selectors reached by
// their domain.
func (sel *Selector) Match(subject string, t ResourceType) (ok bool) {
	return sel.Types.Has(t) && (sel.Path == nil || sel.Path.Match(subject))
}

// String implements the [fmt.Stringer] interface for *Selector.
func (sel *Selector) String() (s string) {
	b := &strings.Builder{}
	b.WriteString(sel.Domain)
	if sel.Path != nil {
		b.WriteString(sel.Path.raw)
	}

	if sel.Types != DefaultResourceTypes {
		b.WriteByte('$')
		b.WriteString(sel.Types.String())
	}

	return b.String()
}

// shapeKey returns the key of everything but the domain.  Selectors with equal
// shape keys are equivalent except for the domain.
func (sel *Selector) shapeKey() (key string) {
	path := "\x00"
	if sel.Path != nil {
		path = sel.Path.raw
	}

	return path + "$" + sel.Types.String()
}
