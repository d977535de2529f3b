package ratelimit_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/martok/palefill/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

// testLogger is a test logger used in tests.
var testLogger = slogutil.NewDiscardLogger()

func TestLimiter_Allow(t *testing.T) {
	t.Parallel()

	c := &ratelimit.Config{
		Logger:   testLogger,
		Interval: time.Hour,
		Limit:    2,
	}
	require.NoError(t, c.Validate())

	l := ratelimit.New(c)
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	for i := range 2 {
		ok, _ := l.Allow(ctx, "a.example")
		require.Truef(t, ok, "event %d", i)
	}

	ok, wait := l.Allow(ctx, "a.example")
	assert.False(t, ok)
	assert.Positive(t, wait)

	ok, _ = l.Allow(ctx, "b.example")
	assert.True(t, ok)
}

func TestLimiter_Allow_logThrottled(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	c := &ratelimit.Config{
		Logger: slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})),
		Interval: time.Hour,
		Limit:    1,
	}
	require.NoError(t, c.Validate())

	l := ratelimit.New(c)
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	ok, _ := l.Allow(ctx, "a.example")
	require.True(t, ok)
	require.Zero(t, buf.Len())

	ok, _ = l.Allow(ctx, "a.example")
	require.False(t, ok)

	assert.Contains(t, buf.String(), "msg=throttled key=a.example")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	var c *ratelimit.Config
	assert.ErrorIs(t, c.Validate(), errors.ErrNoValue)

	c = &ratelimit.Config{}
	err := c.Validate()
	require.Error(t, err)

	assert.ErrorIs(t, err, errors.ErrNoValue)
}
