// Package cmd is the palefill CLI entry point.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/martok/palefill/catalog"
	"github.com/martok/palefill/httpmod"
	"github.com/martok/palefill/internal/prefs"
	"github.com/martok/palefill/internal/version"
	"github.com/martok/palefill/policy"
	"github.com/martok/palefill/rules"
)

// Main is the entrypoint of palefill CLI.
func Main() {
	conf, exitCode, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, fmt.Errorf("parsing options: %w", err))
	}

	if conf == nil {
		os.Exit(exitCode)
	}

	logOutput := os.Stdout
	if conf.LogOutput != "" {
		// #nosec G302 -- Trust the file path that is given in the
		// configuration.
		logOutput, err = os.OpenFile(conf.LogOutput, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, fmt.Errorf("cannot create a log file: %s", err))

			os.Exit(osutil.ExitCodeArgumentError)
		}

		defer func() { _ = logOutput.Close() }()
	}

	lvl := slog.LevelInfo
	if conf.Verbose {
		lvl = slog.LevelDebug
	}

	l := slogutil.New(&slogutil.Config{
		Output:       logOutput,
		Format:       slogutil.FormatDefault,
		Level:        lvl,
		AddTimestamp: true,
	})

	ctx := context.Background()

	err = run(ctx, l, conf, os.Stdout)
	if err != nil {
		l.ErrorContext(ctx, "running palefill", slogutil.KeyError, err)

		// As defers are skipped in case of os.Exit, close logOutput manually.
		if logOutput != os.Stdout {
			_ = logOutput.Close()
		}

		os.Exit(osutil.ExitCodeFailure)
	}
}

// environment contains the components shared by the modes of the program.
type environment struct {
	logger  *slog.Logger
	prefs   *prefs.Storage
	catalog *catalog.Registry
	policy  *policy.Service
	resType rules.ResourceType
}

// newEnvironment reads the rules and the preferences and builds the policy
// service.  conf must be valid.
func newEnvironment(
	ctx context.Context,
	l *slog.Logger,
	conf *configuration,
) (env *environment, err error) {
	// Validated by the configuration.
	t, _ := rules.ParseResourceType(conf.Type)

	p := prefs.New(l.With(slogutil.KeyPrefix, "prefs"))
	if conf.PrefsFile != "" {
		err = p.LoadFile(ctx, conf.PrefsFile)
		if err != nil {
			return nil, fmt.Errorf("loading prefs: %w", err)
		}
	}

	var extra []byte
	if conf.RulesFile != "" {
		// #nosec G304 -- Trust the file path that is given in the
		// configuration.
		extra, err = os.ReadFile(conf.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("reading rules: %w", err)
		}
	}

	cat := catalog.Builtin()
	policyConf := &policy.Config{
		Logger:          l.With(slogutil.KeyPrefix, "policy"),
		Catalog:         cat,
		Prefs:           p,
		ExtraRules:      string(extra),
		LookupCacheSize: conf.LookupCacheSize,
	}

	err = policyConf.Validate()
	if err != nil {
		return nil, fmt.Errorf("policy config: %w", err)
	}

	svc := policy.New(ctx, policyConf)
	p.Subscribe(svc.HandlePrefChanged)

	return &environment{
		logger:  l,
		prefs:   p,
		catalog: cat,
		policy:  svc,
		resType: t,
	}, nil
}

// newModifier returns a response modifier that treats every response as the
// configured resource type.
func (env *environment) newModifier(conf *configuration) (m *httpmod.Modifier, err error) {
	t := env.resType
	c := &httpmod.Config{
		Logger: env.logger.With(slogutil.KeyPrefix, "httpmod"),
		Policy: env.policy,
		Resolver: func(_ *http.Request) (rt rules.ResourceType, ok bool) {
			return t, true
		},
		MaxBodySize:     int64(conf.MaxBodySize),
		CSPCacheTTL:     time.Duration(conf.CSPCacheTTL),
		FailureLogLimit: httpmod.DefaultFailureLogLimit,
	}

	err = c.Validate()
	if err != nil {
		return nil, fmt.Errorf("httpmod config: %w", err)
	}

	return httpmod.New(c), nil
}

// run runs the mode selected by conf.  Results are written to out.
func run(ctx context.Context, l *slog.Logger, conf *configuration, out io.Writer) (err error) {
	l.InfoContext(
		ctx,
		"palefill starting",
		"version", version.Version(),
		"revision", version.Revision(),
		"branch", version.Branch(),
		"commit_time", version.CommitTime(),
	)

	env, err := newEnvironment(ctx, l, conf)
	if err != nil {
		return err
	}

	switch {
	case conf.CheckExclusions != "":
		return checkExclusions(ctx, env, conf.CheckExclusions, out)
	case conf.Rewrite != "":
		return rewriteDump(ctx, env, conf, out)
	case conf.APIPort == 0:
		return printLookups(ctx, env, conf.Lookup, out)
	default:
		return serve(ctx, env, conf)
	}
}

// serve runs the debug API until the program is interrupted.  SIGHUP reloads
// the preferences file.
func serve(ctx context.Context, env *environment, conf *configuration) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runAPI(ctx, env.logger, conf.APIPort, newAPIHandler(env))

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range signalChannel {
		if sig != syscall.SIGHUP {
			env.logger.InfoContext(ctx, "stopping", "signal", sig)

			return nil
		}

		if conf.PrefsFile == "" {
			env.policy.Reload(ctx)

			continue
		}

		err = env.prefs.LoadFile(ctx, conf.PrefsFile)
		if err != nil {
			env.logger.ErrorContext(ctx, "reloading prefs", slogutil.KeyError, err)
		}
	}

	return nil
}
