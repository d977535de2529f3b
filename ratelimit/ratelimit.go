// Package ratelimit provides per-key rate limiting, used to throttle repeated
// events such as failure logs for the same site.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	rate "github.com/beefsack/go-rate"
	gocache "github.com/patrickmn/go-cache"
)

// Limiter allows at most a fixed number of events per key within an interval.
// It's safe for concurrent use.
type Limiter struct {
	logger  *slog.Logger
	buckets *gocache.Cache

	// mu protects buckets from concurrent creation of the same bucket.
	mu *sync.Mutex

	interval   time.Duration
	expiration time.Duration
	limit      uint
}

// New returns a new limiter.  c must be valid.
func New(c *Config) (l *Limiter) {
	exp := c.Expiration
	if exp == 0 {
		exp = 10 * c.Interval
	}

	return &Limiter{
		logger:     c.Logger,
		buckets:    gocache.New(exp, exp),
		mu:         &sync.Mutex{},
		interval:   c.Interval,
		expiration: exp,
		limit:      c.Limit,
	}
}

// bucket returns the rate limiter for key.
func (l *Limiter) bucket(key string) (rl *rate.RateLimiter) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.buckets.Get(key)
	if !ok {
		v = rate.New(int(l.limit), l.interval)
	}

	// Refresh the expiration on every use so that active keys are kept.
	l.buckets.Set(key, v, l.expiration)

	rl, ok = v.(*rate.RateLimiter)
	if !ok {
		panic(fmt.Sprintf("invalid value found in ratelimit cache: bad type: %T", v))
	}

	return rl
}

// Allow returns true if another event for key is allowed now.  If not, wait
// is the time until the next event is allowed.
func (l *Limiter) Allow(ctx context.Context, key string) (ok bool, wait time.Duration) {
	ok, wait = l.bucket(key).Try()
	if !ok {
		l.logger.DebugContext(ctx, "throttled", "key", key, "wait", wait)
	}

	return ok, wait
}
