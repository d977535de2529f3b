package csp

import "strings"

// Parse parses a policy header value.  Empty directives, such as the ones
// produced by doubled semicolons, are skipped.  Directive names are
// lowercased.
func Parse(header string) (p *Policy, err error) {
	p = &Policy{}
	s := &scanner{data: header}
	for {
		s.skipSpace()
		if s.done() {
			return p, nil
		} else if s.peek() == ';' {
			s.pos++

			continue
		}

		var d *Directive
		d, err = s.directive()
		if err != nil {
			return nil, err
		}

		p.Directives = append(p.Directives, d)
	}
}

// scanner is the state of parsing a policy.
type scanner struct {
	data string
	pos  int
}

// done returns true if all data is consumed.
func (s *scanner) done() (ok bool) {
	return s.pos >= len(s.data)
}

// peek returns the current byte.  s must not be done.
func (s *scanner) peek() (c byte) {
	return s.data[s.pos]
}

// skipSpace skips ASCII whitespace.
func (s *scanner) skipSpace() {
	for !s.done() && isSpace(s.peek()) {
		s.pos++
	}
}

// directive scans a directive up to the terminating semicolon or the end of
// data.
func (s *scanner) directive() (d *Directive, err error) {
	start := s.pos
	for !s.done() && isNameChar(s.peek()) {
		s.pos++
	}

	if s.pos == start || (!s.done() && !isSpace(s.peek()) && s.peek() != ';') {
		return nil, &SyntaxError{
			Err:    ErrBadDirectiveName,
			Offset: start,
		}
	}

	d = &Directive{
		Name: strings.ToLower(s.data[start:s.pos]),
	}

	for {
		s.skipSpace()
		if s.done() || s.peek() == ';' {
			return d, nil
		}

		var v string
		v, err = s.value()
		if err != nil {
			return nil, err
		}

		d.Values = append(d.Values, v)
	}
}

// value scans a single quoted or unquoted source expression.
func (s *scanner) value() (v string, err error) {
	start := s.pos
	if s.peek() == '\'' {
		end := strings.IndexByte(s.data[start+1:], '\'')
		if end < 0 {
			return "", &SyntaxError{
				Err:    ErrUnterminatedQuote,
				Offset: start,
			}
		}

		s.pos = start + end + 2

		return s.data[start:s.pos], nil
	}

	for !s.done() && !isSpace(s.peek()) && s.peek() != ';' && s.peek() != '\'' {
		s.pos++
	}

	return s.data[start:s.pos], nil
}

// isSpace returns true if c is ASCII whitespace.
func isSpace(c byte) (ok bool) {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// isNameChar returns true if c may appear in a directive name.
func isNameChar(c byte) (ok bool) {
	return c == '-' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
