package policy

import (
	"log/slog"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/martok/palefill/fix"
)

// Names of the preferences the service reacts to.
const (
	// PrefExclusions is the rule text of the user exclusions.  A fix line of
	// [rules.ExcludeAll] excludes all fixes for its selectors.
	PrefExclusions = "exclusions"

	// PrefGitLabInstances is a JSON list of self-hosted GitLab instances,
	// given as hosts or URLs.  If unset, [DefaultGitLabInstances] are used.
	PrefGitLabInstances = "gitlab.instances"

	// PrefSupersededFixes is a JSON list of fixes the browser doesn't need
	// anymore.  They are removed from the built-in rules.
	PrefSupersededFixes = "fixes.superseded"
)

// Prefs is the source of the preferences.
type Prefs interface {
	// Pref returns the value of the preference or an empty string if it's
	// unset.
	Pref(name string) (val string)

	// JSONPref decodes the JSON value of the preference into v.  ok is false
	// if the preference is unset or empty.
	JSONPref(name string, v any) (ok bool, err error)
}

// Config is the configuration of a [Service].
type Config struct {
	// Logger is used for logging by the service.  It must not be nil.
	Logger *slog.Logger

	// Catalog defines the known fixes.  It must not be nil.
	Catalog fix.Catalog

	// Prefs is the source of the preferences.  It must not be nil.
	Prefs Prefs

	// ExtraRules is rule text loaded after [BuiltinRules].
	ExtraRules string

	// LookupCacheSize is the number of lookup results cached per rule
	// snapshot.  Zero disables the cache.
	LookupCacheSize int
}

// type check
var _ validate.Interface = (*Config)(nil)

// Validate implements the [validate.Interface] interface for *Config.
func (c *Config) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return errors.Join(
		validate.NotNil("Logger", c.Logger),
		validate.NotNilInterface("Catalog", c.Catalog),
		validate.NotNilInterface("Prefs", c.Prefs),
		validate.NotNegative("LookupCacheSize", c.LookupCacheSize),
	)
}
