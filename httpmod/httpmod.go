// Package httpmod rewrites the HTTP responses of the sites that need fixes:
// their Content-Security-Policy headers and their bodies.
package httpmod

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/martok/palefill/fix"
	"github.com/martok/palefill/ratelimit"
	"github.com/martok/palefill/rules"
	gocache "github.com/patrickmn/go-cache"
)

// ErrBodyTooLarge is logged when a body exceeds the configured maximum size.
const ErrBodyTooLarge errors.Error = "body too large"

// Modifier rewrites responses.  It's safe for concurrent use.
type Modifier struct {
	logger   *slog.Logger
	policy   Policy
	resolver TypeResolver

	// cspCache maps the fix set key and the original header value to the
	// rewritten value.  It's nil if caching is disabled.
	cspCache *gocache.Cache

	// failures throttles the failure logs per host.
	failures *ratelimit.Limiter

	maxBodySize int64
}

// New returns a new modifier.  c must be valid.
func New(c *Config) (m *Modifier) {
	resolver := c.Resolver
	if resolver == nil {
		resolver = SecFetchDest
	}

	m = &Modifier{
		logger:   c.Logger,
		policy:   c.Policy,
		resolver: resolver,
		failures: ratelimit.New(&ratelimit.Config{
			Logger:   c.Logger.With(slogutil.KeyPrefix, "failures"),
			Interval: time.Minute,
			Limit:    c.FailureLogLimit,
		}),
		maxBodySize: c.MaxBodySize,
	}

	if c.CSPCacheTTL > 0 {
		m.cspCache = gocache.New(c.CSPCacheTTL, 2*c.CSPCacheTTL)
	}

	return m
}

// ModifyResponse applies the fixes for the request of resp to resp.  It never
// returns an error, since a response without fixes is better than no
// response, so it's suitable for [httputil.ReverseProxy.ModifyResponse].
func (m *Modifier) ModifyResponse(resp *http.Response) (err error) {
	req := resp.Request
	if req == nil || req.URL == nil {
		return nil
	}

	ctx := req.Context()
	defer slogutil.RecoverAndLog(ctx, m.logger)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotModified {
		return nil
	}

	t, ok := m.resolver(req)
	if !ok || !m.policy.IsSiteEnabled(req.URL) {
		return nil
	}

	fixes := m.policy.Fixes(ctx, req.URL, t)
	if fixes == nil {
		return nil
	}

	m.logger.DebugContext(ctx, "applying fixes", "url", req.URL, "type", t, "fixes", fixes.Key())

	m.modifyCSP(ctx, resp, fixes)

	if resp.StatusCode == http.StatusOK && shouldRewriteBody(resp, t, fixes) {
		m.modifyBody(ctx, resp, fixes, t)
	}

	return nil
}

// modifyCSP rewrites every policy header of resp.
func (m *Modifier) modifyCSP(ctx context.Context, resp *http.Response, fixes *fix.Merged) {
	values := resp.Header.Values(httphdr.ContentSecurityPolicy)
	if len(values) == 0 {
		return
	}

	modified := make([]string, 0, len(values))
	for _, v := range values {
		res, err := m.rewriteCSP(ctx, v, fixes)
		if err != nil {
			m.logFailure(ctx, resp.Request, "rewriting csp", err)
		}

		modified = append(modified, res)
	}

	resp.Header[http.CanonicalHeaderKey(httphdr.ContentSecurityPolicy)] = modified
}

// rewriteCSP returns the rewritten policy header value, possibly from the
// cache.  On error, it returns v unchanged.
func (m *Modifier) rewriteCSP(
	ctx context.Context,
	v string,
	fixes *fix.Merged,
) (res string, err error) {
	if m.cspCache == nil {
		return m.policy.ModifyContentSecurityPolicy(ctx, v, fixes)
	}

	key := fixes.Key() + "\n" + v
	if cached, ok := m.cspCache.Get(key); ok {
		res, _ = cached.(string)

		return res, nil
	}

	res, err = m.policy.ModifyContentSecurityPolicy(ctx, v, fixes)
	if err != nil {
		return v, err
	}

	m.cspCache.SetDefault(key, res)

	return res, nil
}

// shouldRewriteBody returns true if the body of resp needs rewriting: HTML
// documents always do, scripts only if the fixes ask for it.  Encoded bodies
// are never rewritten.
func shouldRewriteBody(resp *http.Response, t rules.ResourceType, fixes *fix.Merged) (ok bool) {
	enc := resp.Header.Get(httphdr.ContentEncoding)
	if enc != "" && !strings.EqualFold(enc, "identity") {
		return false
	}

	switch t {
	case rules.TypeDocument, rules.TypeSubdocument:
		mediaType, _, err := mime.ParseMediaType(resp.Header.Get(httphdr.ContentType))

		return err == nil && mediaType == "text/html"
	case rules.TypeScript:
		return fixes.IsModifyScriptContent()
	default:
		return false
	}
}

// modifyBody buffers the body of resp and replaces it with the rewritten one.
// Bodies larger than the maximum size are passed through.
func (m *Modifier) modifyBody(
	ctx context.Context,
	resp *http.Response,
	fixes *fix.Merged,
	t rules.ResourceType,
) {
	orig := resp.Body
	if orig == nil || orig == http.NoBody {
		return
	}

	data, err := io.ReadAll(io.LimitReader(orig, m.maxBodySize+1))
	if err != nil {
		// Pass what was read and the rest of the body through, so that the
		// client sees the same failure.
		resp.Body = &multiReadCloser{
			Reader: io.MultiReader(bytes.NewReader(data), orig),
			Closer: orig,
		}

		m.logFailure(ctx, resp.Request, "reading body", err)

		return
	}

	if int64(len(data)) > m.maxBodySize {
		resp.Body = &multiReadCloser{
			Reader: io.MultiReader(bytes.NewReader(data), orig),
			Closer: orig,
		}

		err = fmt.Errorf("%w: limit %d", ErrBodyTooLarge, m.maxBodySize)
		m.logFailure(ctx, resp.Request, "reading body", err)

		return
	}

	slogutil.CloseAndLog(ctx, m.logger, orig, slog.LevelDebug)

	res := m.policy.ModifyRequestData(ctx, string(data), fixes, t)

	resp.Body = io.NopCloser(strings.NewReader(res))
	resp.ContentLength = int64(len(res))
	resp.Header.Set(httphdr.ContentLength, strconv.Itoa(len(res)))
	resp.Uncompressed = false
}

// multiReadCloser reads from Reader and closes Closer.
type multiReadCloser struct {
	io.Reader
	io.Closer
}

// logFailure logs a failure to modify the response to req unless the failures
// for its host are throttled.
func (m *Modifier) logFailure(ctx context.Context, req *http.Request, msg string, err error) {
	host := req.URL.Hostname()
	if ok, _ := m.failures.Allow(ctx, host); !ok {
		return
	}

	m.logger.ErrorContext(ctx, msg, "host", host, slogutil.KeyError, err)
}

// Wrap returns a transport that applies the fixes to the responses of rt.
func (m *Modifier) Wrap(rt http.RoundTripper) (wrapped http.RoundTripper) {
	if rt == nil {
		rt = http.DefaultTransport
	}

	return &transport{
		base: rt,
		mod:  m,
	}
}

// transport is an [http.RoundTripper] that modifies responses.
type transport struct {
	base http.RoundTripper
	mod  *Modifier
}

// type check
var _ http.RoundTripper = (*transport)(nil)

// RoundTrip implements the [http.RoundTripper] interface for *transport.
func (t *transport) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	resp, err = t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.Request == nil {
		resp.Request = req
	}

	// ModifyResponse never fails.
	_ = t.mod.ModifyResponse(resp)

	return resp, nil
}
