package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/martok/palefill/internal/version"
	"github.com/martok/palefill/rules"
)

// maxAPIBodySize is the maximum size of a request body accepted by the API.
const maxAPIBodySize = 1 << 20

// runAPI starts the HTTP API server.  It is shut down when ctx is canceled.
func runAPI(ctx context.Context, l *slog.Logger, port int, h http.Handler) {
	addr := fmt.Sprintf(":%d", port)
	l.InfoContext(ctx, "starting api server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           h,
	}

	go func() {
		defer slogutil.RecoverAndLog(ctx, l)

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.ErrorContext(ctx, "api server failed to listen", "addr", addr, slogutil.KeyError, err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.ErrorContext(ctx, "api server shutdown failed", slogutil.KeyError, err)
		}
	}()
}

// newAPIHandler returns the handler of the debug API.
func newAPIHandler(env *environment) (h http.Handler) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/version", env.handleVersion)
	r.Get("/fixes", env.handleFixes)
	r.Get("/lookup", env.handleLookup)
	r.Post("/exclusions/check", env.handleCheckExclusions)
	r.Get("/prefs", env.handlePrefs)
	r.Put("/prefs/{name}", env.handleSetPref)

	return r
}

// errorResp is the JSON body of an API error.
type errorResp struct {
	Error string `json:"error"`
	Line  int    `json:"line,omitempty"`
}

// writeJSON writes v as the JSON response body with the given status code.
func (env *environment) writeJSON(r *http.Request, w http.ResponseWriter, code int, v any) {
	w.Header().Set(httphdr.ContentType, "application/json")
	w.WriteHeader(code)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		env.logger.DebugContext(
			r.Context(),
			"writing response",
			"request_id", middleware.GetReqID(r.Context()),
			slogutil.KeyError, err,
		)
	}
}

// writeError writes err as the JSON response body with the given status code.
func (env *environment) writeError(r *http.Request, w http.ResponseWriter, code int, err error) {
	resp := &errorResp{
		Error: err.Error(),
	}

	var synErr *rules.SyntaxError
	if errors.As(err, &synErr) {
		resp.Line = synErr.Line
	}

	env.writeJSON(r, w, code, resp)
}

// handleVersion is the handler for GET /version.
func (env *environment) handleVersion(w http.ResponseWriter, r *http.Request) {
	env.writeJSON(r, w, http.StatusOK, map[string]string{
		"version":     version.Version(),
		"revision":    version.Revision(),
		"branch":      version.Branch(),
		"commit_time": version.CommitTime(),
	})
}

// handleFixes is the handler for GET /fixes.
func (env *environment) handleFixes(w http.ResponseWriter, r *http.Request) {
	env.writeJSON(r, w, http.StatusOK, env.catalog.IDs())
}

// handleLookup is the handler for GET /lookup.  The url query parameter is
// required, type defaults to the configured resource type.
func (env *environment) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rawURL := q.Get("url")
	if rawURL == "" {
		env.writeError(r, w, http.StatusBadRequest, fmt.Errorf("url: %w", errors.ErrNoValue))

		return
	}

	t := env.resType
	if typ := q.Get("type"); typ != "" {
		var err error
		t, err = rules.ParseResourceType(typ)
		if err != nil {
			env.writeError(r, w, http.StatusBadRequest, err)

			return
		}
	}

	res, err := env.lookup(r.Context(), rawURL, t)
	if err != nil {
		env.writeError(r, w, http.StatusBadRequest, err)

		return
	}

	env.writeJSON(r, w, http.StatusOK, res)
}

// checkResp is the JSON body of a successful exclusion check.
type checkResp struct {
	Accepted int `json:"accepted"`
}

// handleCheckExclusions is the handler for POST /exclusions/check.  The
// request body is the exclusion rule text.
func (env *environment) handleCheckExclusions(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAPIBodySize))
	if err != nil {
		env.writeError(r, w, http.StatusRequestEntityTooLarge, err)

		return
	}

	n, err := env.policy.ValidateExclusions(r.Context(), string(b))
	if err != nil {
		env.writeError(r, w, http.StatusUnprocessableEntity, err)

		return
	}

	env.writeJSON(r, w, http.StatusOK, &checkResp{Accepted: n})
}

// handlePrefs is the handler for GET /prefs.
func (env *environment) handlePrefs(w http.ResponseWriter, r *http.Request) {
	names := env.prefs.Names()
	resp := make(map[string]string, len(names))
	for _, name := range names {
		resp[name] = env.prefs.Pref(name)
	}

	env.writeJSON(r, w, http.StatusOK, resp)
}

// handleSetPref is the handler for PUT /prefs/{name}.  The request body is the
// new value, an empty body unsets the preference.
func (env *environment) handleSetPref(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAPIBodySize))
	if err != nil {
		env.writeError(r, w, http.StatusRequestEntityTooLarge, err)

		return
	}

	env.prefs.Set(r.Context(), name, string(b))

	w.WriteHeader(http.StatusNoContent)
}
