// Package policy decides which fixes apply to a request and applies them to
// responses.  It combines the built-in rules with the user exclusions and
// rebuilds them when the preferences change.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/syncutil"
	"github.com/bluele/gcache"
	"github.com/martok/palefill/csp"
	"github.com/martok/palefill/fix"
	"github.com/martok/palefill/rules"
)

// Service selects and applies fixes.  It's safe for concurrent use.
type Service struct {
	logger  *slog.Logger
	catalog fix.Catalog
	prefs   Prefs

	// snap is the current rule snapshot.  It's replaced as a whole on
	// rebuilds.
	snap *atomic.Pointer[snapshot]

	// merged caches compiled fix sets by their keys.  Compiled fix sets only
	// depend on the catalog, so they survive rebuilds.
	merged *syncutil.Map[string, *fix.Merged]

	// rebuildMu serializes rebuilds.
	rebuildMu *sync.Mutex

	extraRules      string
	lookupCacheSize int
}

// snapshot is an immutable set of rules with its lookup cache.
type snapshot struct {
	builtin    *rules.Store
	exclusions *rules.Store

	// lookups caches the fix sets by host, path subject, and resource type.
	// It's nil if caching is disabled.
	lookups gcache.Cache
}

// New returns a new service with the rules built from the current
// preferences.  c must be valid.
func New(ctx context.Context, c *Config) (s *Service) {
	s = &Service{
		logger:          c.Logger,
		catalog:         c.Catalog,
		prefs:           c.Prefs,
		snap:            &atomic.Pointer[snapshot]{},
		merged:          syncutil.NewMap[string, *fix.Merged](),
		rebuildMu:       &sync.Mutex{},
		extraRules:      c.ExtraRules,
		lookupCacheSize: c.LookupCacheSize,
	}

	s.Reload(ctx)

	return s
}

// Reload rebuilds all rules from the current preferences.
func (s *Service) Reload(ctx context.Context) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	s.publish(s.buildBuiltin(ctx), s.buildExclusions(ctx))
}

// HandlePrefChanged rebuilds the rules that depend on the preference with the
// given name.  Other preferences are ignored.
func (s *Service) HandlePrefChanged(ctx context.Context, name string) {
	switch name {
	case PrefExclusions:
		s.rebuildMu.Lock()
		defer s.rebuildMu.Unlock()

		s.publish(s.snap.Load().builtin, s.buildExclusions(ctx))
	case PrefGitLabInstances, PrefSupersededFixes:
		s.Reload(ctx)
	default:
		s.logger.DebugContext(ctx, "ignoring pref change", "name", name)
	}
}

// publish replaces the current snapshot with a new one.  s.rebuildMu must be
// locked.
func (s *Service) publish(builtin, exclusions *rules.Store) {
	snap := &snapshot{
		builtin:    builtin,
		exclusions: exclusions,
	}

	if s.lookupCacheSize > 0 {
		snap.lookups = gcache.New(s.lookupCacheSize).LRU().Build()
	}

	s.snap.Store(snap)
}

// buildBuiltin returns a store with the built-in rules, the extra rules, and
// the GitLab instances, without the superseded fixes.
func (s *Service) buildBuiltin(ctx context.Context) (st *rules.Store) {
	l := s.logger.With(slogutil.KeyPrefix, "builtin")
	st = rules.NewStore(l)

	accepted, processed, _ := st.AddRulesFromString(ctx, BuiltinRules, false)
	l.DebugContext(ctx, "loaded builtin rules", "accepted", accepted, "processed", processed)

	if s.extraRules != "" {
		accepted, processed, _ = st.AddRulesFromString(ctx, s.extraRules, false)
		l.InfoContext(ctx, "loaded extra rules", "accepted", accepted, "processed", processed)
	}

	var instances []string
	if !s.jsonPref(ctx, PrefGitLabInstances, &instances) {
		instances = DefaultGitLabInstances
	}

	accepted, processed, _ = st.AddDefinitions(ctx, gitLabDefinitions(instances), false)
	l.DebugContext(ctx, "loaded gitlab rules", "accepted", accepted, "processed", processed)

	var superseded []string
	if s.jsonPref(ctx, PrefSupersededFixes, &superseded) && len(superseded) > 0 {
		removed := st.RemoveFixes(superseded...)
		l.InfoContext(ctx, "removed superseded fixes", "fixes", superseded, "selectors", removed)
	}

	l.InfoContext(ctx, "rules built", "selectors", st.Len())

	return st
}

// buildExclusions returns a store with the user exclusions.
func (s *Service) buildExclusions(ctx context.Context) (st *rules.Store) {
	l := s.logger.With(slogutil.KeyPrefix, "exclusions")
	st = rules.NewStore(l)

	text := s.prefs.Pref(PrefExclusions)
	if strings.TrimSpace(text) == "" {
		return st
	}

	accepted, processed, _ := st.AddRulesFromString(ctx, text, false)
	l.InfoContext(ctx, "exclusions built", "accepted", accepted, "processed", processed)

	return st
}

// jsonPref decodes the preference into v.  It returns false and logs the
// error if the preference is unset or invalid, in which case v is not changed.
func (s *Service) jsonPref(ctx context.Context, name string, v any) (ok bool) {
	ok, err := s.prefs.JSONPref(name, v)
	if err != nil {
		s.logger.WarnContext(ctx, "bad pref value", "name", name, slogutil.KeyError, err)

		return false
	}

	return ok
}

// ValidateExclusions parses the exclusion rule text in strict mode and returns
// the first error.  It doesn't change the current rules.
func (s *Service) ValidateExclusions(ctx context.Context, text string) (accepted int, err error) {
	st := rules.NewStore(s.logger.With(slogutil.KeyPrefix, "validate"))
	accepted, _, err = st.AddRulesFromString(ctx, text, true)
	if err != nil {
		return accepted, fmt.Errorf("validating exclusions: %w", err)
	}

	return accepted, nil
}

// IsSiteEnabled returns true if any built-in rule may apply to the host of u.
// Exclusions are not considered.
func (s *Service) IsSiteEnabled(u *url.URL) (ok bool) {
	return s.snap.Load().builtin.IsSiteEnabled(u.Hostname())
}

// Fixes returns the compiled fixes for the request or nil if there are none.
// Fixes excluded by the user are removed; an exclusion of
// [rules.ExcludeAll] removes all of them.
func (s *Service) Fixes(ctx context.Context, u *url.URL, t rules.ResourceType) (m *fix.Merged) {
	fixes := s.snap.Load().fixes(rules.NormalizeHost(u.Hostname()), rules.PathSubject(u), t)
	if fixes == nil {
		return nil
	}

	key := fixes.Key()
	m, ok := s.merged.Load(key)
	if ok {
		return m
	}

	m, loaded := s.merged.LoadOrStore(key, fix.NewMerged(s.catalog, s.logger, fixes))
	if !loaded {
		s.logger.DebugContext(ctx, "new fix set", "key", key)
	}

	return m
}

// fixes returns the applicable fixes without the excluded ones.
func (snap *snapshot) fixes(host, subject string, t rules.ResourceType) (fixes *rules.FixSet) {
	if snap.lookups == nil {
		return snap.lookup(host, subject, t)
	}

	key := host + " " + subject + " " + t.String()
	if v, err := snap.lookups.Get(key); err == nil {
		fixes, _ = v.(*rules.FixSet)

		return fixes
	}

	fixes = snap.lookup(host, subject, t)

	// The error is only returned for caches with loaders.
	_ = snap.lookups.Set(key, fixes)

	return fixes
}

// lookup returns the applicable fixes without the excluded ones.
func (snap *snapshot) lookup(host, subject string, t rules.ResourceType) (fixes *rules.FixSet) {
	fixes = snap.builtin.ApplicableTo(host, subject, t)
	if fixes == nil {
		return nil
	}

	excluded := snap.exclusions.ApplicableTo(host, subject, t)
	if excluded.Has(rules.ExcludeAll) {
		return nil
	}

	fixes = fixes.Without(excluded)
	if fixes.Len() == 0 || (fixes.Len() == 1 && fixes.Has(rules.ScriptContentMarker)) {
		return nil
	}

	return fixes
}

// ModifyContentSecurityPolicy returns the policy header value extended with
// the sources m requires.  If header can't be parsed, it's returned unchanged
// together with the error.
func (s *Service) ModifyContentSecurityPolicy(
	ctx context.Context,
	header string,
	m *fix.Merged,
) (res string, err error) {
	p, err := csp.Parse(header)
	if err != nil {
		return header, fmt.Errorf("parsing policy: %w", err)
	}

	var adds []*csp.Directive
	for _, a := range m.CSPAdditions(ctx) {
		adds = append(adds, &csp.Directive{
			Name:   a.Directive,
			Values: a.Values,
		})
	}

	return p.Merge(adds, m.SelfHash(ctx)).String(), nil
}

// ModifyRequestData returns the body of a response with the fixes applied.
// Scripts are only injected into documents and subdocuments.
func (s *Service) ModifyRequestData(
	ctx context.Context,
	data string,
	m *fix.Merged,
	t rules.ResourceType,
) (res string) {
	inject := t == rules.TypeDocument || t == rules.TypeSubdocument

	return m.Rewrite(ctx, data, inject)
}
