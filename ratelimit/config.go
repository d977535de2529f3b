package ratelimit

import (
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
)

// Config is the configuration for a [Limiter].
type Config struct {
	// Logger is used for logging in the limiter.  It must not be nil.
	Logger *slog.Logger

	// Interval is the window in which at most Limit events per key are
	// allowed.  It must be positive.
	Interval time.Duration

	// Expiration is the time after which the state of an idle key is
	// dropped.  If zero, ten intervals are used.
	Expiration time.Duration

	// Limit is the maximum number of events per key within Interval.  It must
	// be positive.
	Limit uint
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
		validate.Positive("Interval", c.Interval),
		validate.Positive("Limit", c.Limit),
		validate.NotNegative("Expiration", c.Expiration),
	)
}
