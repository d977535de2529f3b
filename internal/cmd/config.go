package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/martok/palefill/httpmod"
	"github.com/martok/palefill/rules"
	"gopkg.in/yaml.v3"
)

// argConfigPath is the prefix of the argument with the configuration file
// path.  The file is read before the other arguments, so that they override
// it.
const argConfigPath = "--config-path="

// configuration is the configuration of the program, read from the YAML file
// and the command-line arguments.
type configuration struct {
	// ConfigPath is the path to the YAML configuration file.
	ConfigPath string `yaml:"-"`

	// LogOutput is the path to the log file.  If empty, stdout is used.
	LogOutput string `yaml:"output"`

	// RulesFile is the path to a file with rules added to the built-in ones.
	RulesFile string `yaml:"rules-file"`

	// PrefsFile is the path to the YAML preferences file.
	PrefsFile string `yaml:"prefs-file"`

	// Lookup are the URLs to print the fixes for.
	Lookup []string `yaml:"lookup"`

	// Type is the resource type used for lookups and rewrites.
	Type string `yaml:"type"`

	// CheckExclusions is the path to an exclusion list to validate.
	CheckExclusions string `yaml:"check-exclusions"`

	// Rewrite is the path to an HTTP response dump to rewrite for the first
	// lookup URL.
	Rewrite string `yaml:"rewrite"`

	// CSPCacheTTL is the time rewritten policy headers are cached.
	CSPCacheTTL timeutil.Duration `yaml:"csp-cache-ttl"`

	// APIPort is the port of the debug HTTP API.  Zero disables it.
	APIPort int `yaml:"api-port"`

	// LookupCacheSize is the number of cached lookups.
	LookupCacheSize int `yaml:"lookup-cache-size"`

	// MaxBodySize is the maximum size of a rewritten body in bytes.
	MaxBodySize uint `yaml:"max-body-size"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`

	// Version makes the program print the version and exit.
	Version bool `yaml:"-"`

	// help makes the program print the usage and exit.
	help bool
}

// newDefaultConfiguration returns the configuration with the default values.
func newDefaultConfiguration() (conf *configuration) {
	return &configuration{
		Type:            rules.TypeDocument.String(),
		CSPCacheTTL:     timeutil.Duration(httpmod.DefaultCSPCacheTTL),
		LookupCacheSize: 1024,
		MaxBodySize:     httpmod.DefaultMaxBodySize,
	}
}

// type check
var _ validate.Interface = (*configuration)(nil)

// Validate implements the [validate.Interface] interface for *configuration.
func (conf *configuration) Validate() (err error) {
	if conf == nil {
		return errors.ErrNoValue
	}

	_, typeErr := rules.ParseResourceType(conf.Type)
	if typeErr != nil {
		typeErr = fmt.Errorf("type: %w", typeErr)
	}

	var rewriteErr error
	if conf.Rewrite != "" && len(conf.Lookup) == 0 {
		rewriteErr = fmt.Errorf("rewrite: lookup url: %w", errors.ErrNoValue)
	}

	errs := []error{
		typeErr,
		rewriteErr,
		validate.NotNegative("APIPort", conf.APIPort),
		validate.NoGreaterThan("APIPort", conf.APIPort, 0xffff),
		validate.NotNegative("LookupCacheSize", conf.LookupCacheSize),
		validate.Positive("MaxBodySize", conf.MaxBodySize),
		validate.NotNegative("CSPCacheTTL", time.Duration(conf.CSPCacheTTL)),
	}

	for _, u := range conf.Lookup {
		errs = append(errs, validateLookupURL(u))
	}

	return errors.Join(errs...)
}

// parseConfigFile fills conf with the settings from the file read by the
// given path.
func parseConfigFile(conf *configuration, confPath string) (err error) {
	// #nosec G304 -- Trust the file path that is given in the args.
	b, err := os.ReadFile(confPath)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	err = yaml.Unmarshal(b, conf)
	if err != nil {
		return fmt.Errorf("unmarshalling file: %w", err)
	}

	return nil
}

// parseConfig returns the configuration parsed from the configuration file
// and args.  If conf is nil, the program should exit with exitCode.
func parseConfig(args []string) (conf *configuration, exitCode int, err error) {
	conf = newDefaultConfiguration()

	for _, arg := range args {
		confPath, ok := strings.CutPrefix(arg, argConfigPath)
		if !ok {
			continue
		}

		err = parseConfigFile(conf, confPath)
		if err != nil {
			return nil, osutil.ExitCodeArgumentError, fmt.Errorf(
				"parsing config file %s: %w",
				confPath,
				err,
			)
		}
	}

	err = parseCmdLineOptions(conf, args)
	exitCode, needExit := processCmdLineOptions(conf, err)
	if needExit {
		return nil, exitCode, err
	}

	err = conf.Validate()
	if err != nil {
		return nil, osutil.ExitCodeArgumentError, fmt.Errorf("validating configuration: %w", err)
	}

	return conf, osutil.ExitCodeSuccess, nil
}
