package httpmod

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/martok/palefill/fix"
	"github.com/martok/palefill/rules"
)

// Policy selects and applies the fixes.  [policy.Service] implements it.
type Policy interface {
	// IsSiteEnabled returns true if any fix may apply to the host of u.
	IsSiteEnabled(u *url.URL) (ok bool)

	// Fixes returns the compiled fixes for the request or nil.
	Fixes(ctx context.Context, u *url.URL, t rules.ResourceType) (m *fix.Merged)

	// ModifyContentSecurityPolicy returns the extended policy header value.
	ModifyContentSecurityPolicy(
		ctx context.Context,
		header string,
		m *fix.Merged,
	) (res string, err error)

	// ModifyRequestData returns the response body with the fixes applied.
	ModifyRequestData(
		ctx context.Context,
		data string,
		m *fix.Merged,
		t rules.ResourceType,
	) (res string)
}

// Default values of the configuration.
const (
	DefaultMaxBodySize     = 16 << 20
	DefaultCSPCacheTTL     = 10 * time.Minute
	DefaultFailureLogLimit = 5
)

// Config is the configuration of a [Modifier].
type Config struct {
	// Logger is used for logging by the modifier.  It must not be nil.
	Logger *slog.Logger

	// Policy selects and applies the fixes.  It must not be nil.
	Policy Policy

	// Resolver returns the resource type of a request.  If nil,
	// [SecFetchDest] is used.
	Resolver TypeResolver

	// MaxBodySize is the maximum size of a body to rewrite.  Larger bodies
	// are passed through.  It must be positive.
	MaxBodySize int64

	// CSPCacheTTL is the time rewritten policy headers are cached.  Zero
	// disables the cache.
	CSPCacheTTL time.Duration

	// FailureLogLimit is the maximum number of failures logged per host and
	// minute.  It must be positive.
	FailureLogLimit uint
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
		validate.NotNilInterface("Policy", c.Policy),
		validate.Positive("MaxBodySize", c.MaxBodySize),
		validate.NotNegative("CSPCacheTTL", c.CSPCacheTTL),
		validate.Positive("FailureLogLimit", c.FailureLogLimit),
	)
}
