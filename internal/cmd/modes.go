package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/martok/palefill/rules"
)

// cspAddition is the JSON form of [fix.CSPAddition].
type cspAddition struct {
	Directive string   `json:"directive"`
	Values    []string `json:"values"`
}

// lookupResult is the result of a lookup of the fixes for a URL.
type lookupResult struct {
	URL           string        `json:"url"`
	Type          string        `json:"type"`
	Fixes         []string      `json:"fixes"`
	CSP           []cspAddition `json:"csp,omitempty"`
	Replacements  []string      `json:"replacements,omitempty"`
	SelfHash      string        `json:"self_hash,omitempty"`
	Markup        string        `json:"markup,omitempty"`
	Enabled       bool          `json:"enabled"`
	ScriptContent bool          `json:"script_content"`
}

// lookup returns the fixes for rawURL and resource type t together with their
// compiled effects.
func (env *environment) lookup(
	ctx context.Context,
	rawURL string,
	t rules.ResourceType,
) (res *lookupResult, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	res = &lookupResult{
		URL:     u.String(),
		Type:    t.String(),
		Fixes:   []string{},
		Enabled: env.policy.IsSiteEnabled(u),
	}

	if !res.Enabled {
		return res, nil
	}

	m := env.policy.Fixes(ctx, u, t)
	if m == nil {
		return res, nil
	}

	res.Fixes = m.Fixes().IDs()
	res.ScriptContent = m.IsModifyScriptContent()
	res.SelfHash = m.SelfHash(ctx)
	res.Markup = m.Markup(ctx)

	for _, a := range m.CSPAdditions(ctx) {
		res.CSP = append(res.CSP, cspAddition{
			Directive: a.Directive,
			Values:    a.Values,
		})
	}

	for _, r := range m.Replacements(ctx) {
		res.Replacements = append(res.Replacements, r.String())
	}

	return res, nil
}

// printLookups writes the lookup results for the URLs to out as JSON.
func printLookups(ctx context.Context, env *environment, urls []string, out io.Writer) (err error) {
	if len(urls) == 0 {
		env.logger.WarnContext(ctx, "nothing to do; use --lookup, --rewrite, --check-exclusions, or --api-port")

		return nil
	}

	results := make([]*lookupResult, 0, len(urls))
	for _, rawURL := range urls {
		var res *lookupResult
		res, err = env.lookup(ctx, rawURL, env.resType)
		if err != nil {
			return fmt.Errorf("looking up %q: %w", rawURL, err)
		}

		results = append(results, res)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	return enc.Encode(results)
}

// checkExclusions validates the exclusion list in the file at path and writes
// the number of accepted selectors to out.
func checkExclusions(ctx context.Context, env *environment, path string, out io.Writer) (err error) {
	// #nosec G304 -- Trust the file path that is given in the configuration.
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading exclusions: %w", err)
	}

	n, err := env.policy.ValidateExclusions(ctx, string(b))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	_, err = fmt.Fprintf(out, "%s: %d selectors ok\n", path, n)

	return err
}

// rewriteDump reads an HTTP/1.x response from the file given by
// conf.Rewrite, applies the fixes for the first lookup URL to it, and writes
// the result to out.
func rewriteDump(ctx context.Context, env *environment, conf *configuration, out io.Writer) (err error) {
	m, err := env.newModifier(conf)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, conf.Lookup[0], nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	// #nosec G304 -- Trust the file path that is given in the configuration.
	f, err := os.Open(conf.Rewrite)
	if err != nil {
		return fmt.Errorf("opening response: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	resp, err := http.ReadResponse(bufio.NewReader(f), req)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, resp.Body.Close()) }()

	before := resp.Header.Get(httphdr.ContentSecurityPolicy)

	// ModifyResponse never fails.
	_ = m.ModifyResponse(resp)

	if after := resp.Header.Get(httphdr.ContentSecurityPolicy); after != before {
		env.logger.InfoContext(ctx, "policy rewritten", "before", before, "after", after)
	}

	err = resp.Write(out)
	if err != nil {
		return fmt.Errorf("writing response: %w", err)
	}

	return nil
}
