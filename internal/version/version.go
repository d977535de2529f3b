// Package version contains palefill version information.
package version

import (
	"fmt"
	"strings"
)

// These are set by the linker, for example:
//
//	go build -ldflags "-X github.com/martok/palefill/internal/version.version=v1.2.3"
var (
	branch     string
	committime string
	revision   string
	version    string
)

// Branch returns the compiled-in value of the Git branch.
func Branch() (b string) {
	return branch
}

// CommitTime returns the compiled-in value of the build time as a string.
func CommitTime() (t string) {
	return committime
}

// Revision returns the compiled-in value of the Git revision.
func Revision() (r string) {
	return revision
}

// Version returns the compiled-in value of the build version as a string.  It
// is "dev" for builds without one.
func Version() (v string) {
	if version == "" {
		return "dev"
	}

	return version
}

// Verbose returns the version along with the revision, the branch, and the
// commit time that are known.
func Verbose() (s string) {
	b := &strings.Builder{}
	_, _ = fmt.Fprintf(b, "palefill version %s", Version())

	for _, kv := range [...]struct {
		key string
		val string
	}{{
		key: "revision",
		val: revision,
	}, {
		key: "branch",
		val: branch,
	}, {
		key: "commit time",
		val: committime,
	}} {
		if kv.val != "" {
			_, _ = fmt.Fprintf(b, "\n%s: %s", kv.key, kv.val)
		}
	}

	return b.String()
}
