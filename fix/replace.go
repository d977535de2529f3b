package fix

import (
	"regexp"
	"strings"
)

// Replacement is a substitution in the body of a response.  Either Pattern or
// Literal must be set.
type Replacement struct {
	// Pattern is the expression to replace.  The replacement may refer to its
	// submatches as in [regexp.Regexp.Expand].
	Pattern *regexp.Regexp

	// Literal is the text to replace if Pattern is nil.
	Literal string

	// Replacement is the text to insert instead of the first match.
	Replacement string
}

// ReplaceLiteral returns a replacement of the first occurrence of old with
// repl.
func ReplaceLiteral(old, repl string) (r *Replacement) {
	return &Replacement{
		Literal:     old,
		Replacement: repl,
	}
}

// ReplaceRegexp returns a replacement of the first match of the expression
// with repl.  It panics if expr is not a valid expression.
func ReplaceRegexp(expr, repl string) (r *Replacement) {
	return &Replacement{
		Pattern:     regexp.MustCompile(expr),
		Replacement: repl,
	}
}

// String implements the [fmt.Stringer] interface for *Replacement.
func (r *Replacement) String() (s string) {
	if r.Pattern != nil {
		return "/" + r.Pattern.String() + "/ -> " + r.Replacement
	}

	return r.Literal + " -> " + r.Replacement
}

// Apply returns data with the first match replaced.  ok is false if there was
// no match.
func (r *Replacement) Apply(data string) (res string, ok bool) {
	if r.Pattern == nil {
		before, after, found := strings.Cut(data, r.Literal)
		if !found {
			return data, false
		}

		return before + r.Replacement + after, true
	}

	loc := r.Pattern.FindStringSubmatchIndex(data)
	if loc == nil {
		return data, false
	}

	var b strings.Builder
	b.Grow(len(data) + len(r.Replacement))
	b.WriteString(data[:loc[0]])
	b.Write(r.Pattern.ExpandString(nil, r.Replacement, data, loc))
	b.WriteString(data[loc[1]:])

	return b.String(), true
}
