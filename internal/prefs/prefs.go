// Package prefs contains the preference storage with change notifications.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
	"gopkg.in/yaml.v3"
)

// Handler is called with the name of a changed preference.
type Handler func(ctx context.Context, name string)

// Storage is an in-memory preference storage.  It's safe for concurrent use.
type Storage struct {
	logger *slog.Logger

	// mu protects values and handlers.
	mu       *sync.RWMutex
	values   map[string]string
	handlers []Handler
}

// New returns an empty storage.  l must not be nil.
func New(l *slog.Logger) (s *Storage) {
	return &Storage{
		logger: l,
		mu:     &sync.RWMutex{},
		values: map[string]string{},
	}
}

// Pref returns the value of the preference or an empty string.
func (s *Storage) Pref(name string) (val string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.values[name]
}

// JSONPref decodes the JSON value of the preference into v.  ok is false if
// the preference is unset or empty.
func (s *Storage) JSONPref(name string, v any) (ok bool, err error) {
	val := s.Pref(name)
	if val == "" {
		return false, nil
	}

	err = json.Unmarshal([]byte(val), v)
	if err != nil {
		return false, fmt.Errorf("pref %q: %w", name, err)
	}

	return true, nil
}

// Names returns the sorted names of the set preferences.
func (s *Storage) Names() (names []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(maps.Keys(s.values))
}

// Subscribe adds a handler called after every change.  Handlers are called
// synchronously in the order of subscription.
func (s *Storage) Subscribe(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = append(s.handlers, h)
}

// Set changes the value of the preference and notifies the handlers if the
// value differs.  An empty value unsets the preference.
func (s *Storage) Set(ctx context.Context, name, val string) {
	s.mu.Lock()
	prev, ok := s.values[name]
	if (ok && prev == val) || (!ok && val == "") {
		s.mu.Unlock()

		return
	}

	if val == "" {
		delete(s.values, name)
	} else {
		s.values[name] = val
	}

	handlers := slices.Clone(s.handlers)
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "pref changed", "name", name)

	for _, h := range handlers {
		h(ctx, name)
	}
}

// SetJSON sets the preference to the JSON encoding of v.  A nil v unsets the
// preference.
func (s *Storage) SetJSON(ctx context.Context, name string, v any) (err error) {
	if v == nil {
		s.Set(ctx, name, "")

		return nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("pref %q: %w", name, err)
	}

	s.Set(ctx, name, string(b))

	return nil
}

// LoadFile sets the preferences from a YAML file.  String values are stored as
// is, all other values are stored as JSON.  Preferences missing from the file
// are unset.
func (s *Storage) LoadFile(ctx context.Context, path string) (err error) {
	// #nosec G304 -- Trust the file path that is given in the configuration.
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening prefs: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	values := map[string]any{}
	err = yaml.NewDecoder(f).Decode(&values)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding prefs: %w", err)
	}

	for _, name := range s.Names() {
		if _, ok := values[name]; !ok {
			s.Set(ctx, name, "")
		}
	}

	for _, name := range slices.Sorted(maps.Keys(values)) {
		switch v := values[name].(type) {
		case string:
			s.Set(ctx, name, v)
		default:
			err = s.SetJSON(ctx, name, v)
			if err != nil {
				return fmt.Errorf("setting prefs: %w", err)
			}
		}
	}

	return nil
}
