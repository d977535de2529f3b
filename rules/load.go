package rules

import (
	"context"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Definition is a structured rule definition: every selector applies the same
// fixes.
type Definition struct {
	// Selectors are the selector strings.
	Selectors []string `yaml:"selector" json:"selector"`

	// Fixes are the fix identifiers.
	Fixes []string `yaml:"fix" json:"fix"`
}

// AddDefinitions parses and adds the selectors of defs.  processed is the
// number of selectors seen and accepted is the number of selectors added.  If
// strict is true, the first error is returned immediately.  Otherwise errors
// are logged and err is always nil.
func (s *Store) AddDefinitions(
	ctx context.Context,
	defs []Definition,
	strict bool,
) (accepted, processed int, err error) {
	for _, def := range defs {
		fixes := NewFixSet(def.Fixes...)
		for _, selStr := range def.Selectors {
			processed++

			if fixes == nil {
				err = &SyntaxError{Text: selStr, Err: ErrEmptyFixList}
			} else {
				err = s.addSelector(selStr, fixes)
			}

			if err != nil {
				if strict {
					return accepted, processed, err
				}

				s.logger.WarnContext(ctx, "skipping selector", slogutil.KeyError, err)

				continue
			}

			accepted++
		}
	}

	return accepted, processed, nil
}

// addSelector parses selStr and adds it with fixes.
func (s *Store) addSelector(selStr string, fixes *FixSet) (err error) {
	sel, err := ParseSelector(selStr)
	if err != nil {
		// Don't wrap the error, since it's a *SyntaxError already.
		return err
	}

	s.Add(sel, fixes)

	return nil
}

// pendingSelector is a selector waiting for the fix line of its group.
type pendingSelector struct {
	sel  *Selector
	text string
	line int
}

// textParser parses the line-oriented rule language.
type textParser struct {
	store   *Store
	pending []pendingSelector

	accepted  int
	processed int

	// inGroup is true if a selector line has been seen since the last fix
	// line, even if none of its selectors were valid.
	inGroup bool
	strict  bool
}

// AddRulesFromString parses the line-oriented rule language and adds the
// rules.  Lines starting with "!" are comments and blank lines separate
// groups.  Other lines without indentation contain selectors, separated by a
// comma and a space.  An indented line contains a comma-separated list of
// fixes which applies to all selectors seen since the previous fix line or
// blank line.  Selectors followed by a blank line have no fixes and are
// dropped.
//
// processed is the number of selectors seen and accepted is the number of
// selectors added.  If strict is true, the first error is returned
// immediately.  Otherwise errors are logged and err is always nil.
func (s *Store) AddRulesFromString(
	ctx context.Context,
	text string,
	strict bool,
) (accepted, processed int, err error) {
	p := &textParser{
		store:  s,
		strict: strict,
	}

	for i, line := range strings.Split(text, "\n") {
		err = p.parseLine(i+1, strings.TrimSuffix(line, "\r"))
		if err == nil {
			continue
		} else if strict {
			return p.accepted, p.processed, err
		}

		s.logger.WarnContext(ctx, "skipping rule line", slogutil.KeyError, err)
	}

	if len(p.pending) > 0 {
		last := p.pending[len(p.pending)-1]
		err = &SyntaxError{Line: last.line, Text: last.text, Err: ErrUnterminatedGroup}
		if strict {
			return p.accepted, p.processed, err
		}

		s.logger.WarnContext(
			ctx,
			"dropping selectors",
			"count", len(p.pending),
			slogutil.KeyError, err,
		)
	}

	return p.accepted, p.processed, nil
}

// parseLine parses a single line of rule text.
func (p *textParser) parseLine(num int, line string) (err error) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return p.closeGroup()
	case strings.HasPrefix(line, "!"):
		return nil
	case line[0] == ' ' || line[0] == '\t':
		return p.parseFixLine(num, trimmed)
	default:
		return p.parseSelectorLine(num, trimmed)
	}
}

// closeGroup drops the pending selectors at a blank line.  It returns an error
// if there were any, since a blank line separates groups and they have no fix
// line.
func (p *textParser) closeGroup() (err error) {
	p.inGroup = false
	if len(p.pending) == 0 {
		return nil
	}

	last := p.pending[len(p.pending)-1]
	p.pending = p.pending[:0]

	return &SyntaxError{Line: last.line, Text: last.text, Err: ErrUnterminatedGroup}
}

// parseSelectorLine adds the selectors of line to the pending group.
func (p *textParser) parseSelectorLine(num int, line string) (err error) {
	p.inGroup = true

	var errs []error
	for _, text := range splitSelectors(line) {
		p.processed++

		sel, parseErr := ParseSelector(text)
		if parseErr != nil {
			errs = append(errs, withLine(parseErr, num))

			continue
		}

		p.pending = append(p.pending, pendingSelector{sel: sel, text: text, line: num})
	}

	return errors.Join(errs...)
}

// parseFixLine adds the pending selectors with the fixes of line.
func (p *textParser) parseFixLine(num int, line string) (err error) {
	inGroup := p.inGroup
	p.inGroup = false

	fixes := NewFixSet(splitFixes(line)...)
	if fixes == nil {
		p.pending = p.pending[:0]

		return &SyntaxError{Line: num, Text: line, Err: ErrEmptyFixList}
	}

	if !inGroup {
		return &SyntaxError{Line: num, Text: line, Err: ErrNoSelectors}
	}

	for _, ps := range p.pending {
		p.store.Add(ps.sel, fixes)
		p.accepted++
	}

	p.pending = p.pending[:0]

	return nil
}

// splitSelectors splits a selector line.  Selectors are separated by a comma
// followed by whitespace, since commas without whitespace separate options.
func splitSelectors(line string) (sels []string) {
	for _, f := range strings.Fields(line) {
		f = strings.TrimSuffix(f, ",")
		if f != "" {
			sels = append(sels, f)
		}
	}

	return sels
}

// splitFixes splits a comma-separated fix list.  Empty identifiers are
// dropped by [NewFixSet].
func splitFixes(line string) (ids []string) {
	ids = strings.Split(line, ",")
	for i, id := range ids {
		ids[i] = strings.TrimSpace(id)
	}

	return ids
}

// withLine sets the line number of a *SyntaxError returned by
// [ParseSelector].
func withLine(err error, num int) (res error) {
	var synErr *SyntaxError
	if errors.As(err, &synErr) {
		synErr.Line = num
	}

	return err
}
