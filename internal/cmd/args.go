package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/martok/palefill/internal/version"
)

// Indexes to help with the [commandLineOptions] initialization.
const (
	configPathIdx = iota
	logOutputIdx
	rulesFileIdx
	prefsFileIdx
	lookupIdx
	typeIdx
	checkExclusionsIdx
	rewriteIdx
	cspCacheTTLIdx
	apiPortIdx
	lookupCacheSizeIdx
	maxBodySizeIdx
	helpIdx
	versionIdx
	verboseIdx
)

// commandLineOption contains information about a command-line option: its long
// and, if there is one, short forms, the value type, and the description.
type commandLineOption struct {
	description string
	long        string
	short       string
	valueType   string
}

// commandLineOptions are all command-line options currently supported by the
// binary.
var commandLineOptions = []*commandLineOption{
	configPathIdx: {
		description: "YAML configuration file. Options passed through command line will " +
			"override the ones from this file.",
		long:      "config-path",
		short:     "",
		valueType: "path",
	},
	logOutputIdx: {
		description: "Path to the log file. If not set, write to stdout.",
		long:        "output",
		short:       "o",
		valueType:   "path",
	},
	rulesFileIdx: {
		description: "Path to a file with rules added to the built-in ones.",
		long:        "rules-file",
		short:       "r",
		valueType:   "path",
	},
	prefsFileIdx: {
		description: "Path to the YAML file with the preferences: exclusions, " +
			"gitlab.instances, and fixes.superseded.",
		long:      "prefs-file",
		short:     "p",
		valueType: "path",
	},
	lookupIdx: {
		description: "Print the fixes for the URL (can be specified multiple times).",
		long:        "lookup",
		short:       "u",
		valueType:   "url",
	},
	typeIdx: {
		description: "Resource type for lookups and rewrites: document, subdocument, or " +
			"script (default: document).",
		long:      "type",
		short:     "t",
		valueType: "type",
	},
	checkExclusionsIdx: {
		description: "Validate the exclusion list in the file and exit.",
		long:        "check-exclusions",
		short:       "",
		valueType:   "path",
	},
	rewriteIdx: {
		description: "Rewrite the HTTP response dump in the file for the first lookup URL " +
			"and print the result.",
		long:      "rewrite",
		short:     "",
		valueType: "path",
	},
	cspCacheTTLIdx: {
		description: "Time rewritten Content-Security-Policy headers are cached " +
			"in a human-readable form.",
		long:      "csp-cache-ttl",
		short:     "",
		valueType: "duration",
	},
	apiPortIdx: {
		description: "Port for the debug HTTP API. Zero disables it.",
		long:        "api-port",
		short:       "",
		valueType:   "port",
	},
	lookupCacheSizeIdx: {
		description: "Number of cached lookup results. Zero disables the cache.",
		long:        "lookup-cache-size",
		short:       "",
		valueType:   "size",
	},
	maxBodySizeIdx: {
		description: "Maximum size of a rewritten response body in bytes.",
		long:        "max-body-size",
		short:       "",
		valueType:   "size",
	},
	helpIdx: {
		description: "Print this help message and quit.",
		long:        "help",
		short:       "h",
		valueType:   "",
	},
	versionIdx: {
		description: "Prints the program version.",
		long:        "version",
		short:       "",
		valueType:   "",
	},
	verboseIdx: {
		description: "Verbose output.",
		long:        "verbose",
		short:       "v",
		valueType:   "",
	},
}

// names returns the flag names of o, the long one first.
func (o *commandLineOption) names() (names []string) {
	if o.short == "" {
		return []string{o.long}
	}

	return []string{o.long, o.short}
}

// usageLine returns the line of the usage message with the names of o and the
// hint of its value.
func (o *commandLineOption) usageLine() (line string) {
	hint := ""
	if o.valueType != "" {
		hint = "=" + o.valueType
	}

	line = "  --" + o.long + hint
	if o.short == "" {
		return line
	}

	if hint != "" {
		hint = " " + o.valueType
	}

	return line + "/-" + o.short + hint
}

// parseCmdLineOptions parses the command-line options.  conf must not be nil.
func parseCmdLineOptions(conf *configuration, args []string) (err error) {
	cmdName := os.Args[0]

	flags := flag.NewFlagSet(cmdName, flag.ContinueOnError)
	for i, fieldPtr := range []any{
		configPathIdx:      &conf.ConfigPath,
		logOutputIdx:       &conf.LogOutput,
		rulesFileIdx:       &conf.RulesFile,
		prefsFileIdx:       &conf.PrefsFile,
		lookupIdx:          &conf.Lookup,
		typeIdx:            &conf.Type,
		checkExclusionsIdx: &conf.CheckExclusions,
		rewriteIdx:         &conf.Rewrite,
		cspCacheTTLIdx:     &conf.CSPCacheTTL,
		apiPortIdx:         &conf.APIPort,
		lookupCacheSizeIdx: &conf.LookupCacheSize,
		maxBodySizeIdx:     &conf.MaxBodySize,
		helpIdx:            &conf.help,
		versionIdx:         &conf.Version,
		verboseIdx:         &conf.Verbose,
	} {
		addOption(flags, fieldPtr, commandLineOptions[i])
	}

	flags.Usage = func() { usage(cmdName, os.Stderr) }

	// Don't wrap the error, since the flag set has already reported it along
	// with the usage.
	return flags.Parse(args)
}

// addOption defines the flags of o in flags storing the value into fieldPtr.
// All names of o share the value.
func addOption(flags *flag.FlagSet, fieldPtr any, o *commandLineOption) {
	if p, ok := fieldPtr.(*[]string); ok {
		// The slice value must be shared between the names, since it resets
		// the defaults on the first use.
		fieldPtr = newURLSliceValue(p)
	}

	for _, name := range o.names() {
		switch p := fieldPtr.(type) {
		case *string:
			flags.StringVar(p, name, *p, o.description)
		case *bool:
			flags.BoolVar(p, name, *p, o.description)
		case *int:
			flags.IntVar(p, name, *p, o.description)
		case *uint:
			flags.UintVar(p, name, *p, o.description)
		case *timeutil.Duration:
			flags.TextVar(p, name, *p, o.description)
		case flag.Value:
			flags.Var(p, name, o.description)
		default:
			panic(fmt.Errorf("option %q: field pointer type %T: %w", o.long, p, errors.ErrBadEnumValue))
		}
	}
}

// usage writes the usage message to output.  Unlike the one of package flag, it
// lists every option once with both names and the hint of its value.
func usage(cmdName string, output io.Writer) {
	options := slices.SortedFunc(slices.Values(commandLineOptions), func(a, b *commandLineOption) (res int) {
		return strings.Compare(a.long, b.long)
	})

	b := &strings.Builder{}
	_, _ = fmt.Fprintf(b, "Usage of %s:\n", cmdName)
	for _, o := range options {
		// Four spaces before the tab align the descriptions for both 4- and
		// 8-space tab stops.
		_, _ = fmt.Fprintf(b, "%s\n    \t%s\n", o.usageLine(), o.description)
	}

	_, _ = io.WriteString(output, b.String())
}

// processCmdLineOptions returns the exit code and true if the program should
// exit after parsing the options with parseErr.
func processCmdLineOptions(conf *configuration, parseErr error) (exitCode int, needExit bool) {
	switch {
	case parseErr != nil:
		// The flag set has printed the usage.
		return osutil.ExitCodeArgumentError, true
	case conf.help:
		usage(os.Args[0], os.Stdout)

		return osutil.ExitCodeSuccess, true
	case conf.Version:
		_, _ = fmt.Println(version.Verbose())

		return osutil.ExitCodeSuccess, true
	default:
		return osutil.ExitCodeSuccess, false
	}
}
