package cmd

import (
	"flag"
	"fmt"
	"net/url"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// urlSliceValue is a list of absolute URLs that can be defined as a flag for
// [flag.FlagSet].  Every URL is checked when the flag is set.
type urlSliceValue struct {
	// values is the pointer to the slice of URLs to store parsed values.
	values *[]string

	// isSet is false until the corresponding flag is met for the first time.
	// When the flag is found, the default value is overwritten with zero value.
	isSet bool
}

// newURLSliceValue returns a pointer to urlSliceValue with the given value.
func newURLSliceValue(p *[]string) (out *urlSliceValue) {
	return &urlSliceValue{
		values: p,
		isSet:  false,
	}
}

// type check
var _ flag.Value = (*urlSliceValue)(nil)

// Set implements the [flag.Value] interface for *urlSliceValue.
func (v *urlSliceValue) Set(s string) (err error) {
	err = validateLookupURL(s)
	if err != nil {
		return err
	}

	if !v.isSet {
		v.isSet = true
		*v.values = []string{}
	}

	*v.values = append(*v.values, s)

	return nil
}

// String implements the [flag.Value] interface for *urlSliceValue.
func (v *urlSliceValue) String() (out string) {
	if v == nil || v.values == nil {
		return ""
	}

	return strings.Join(*v.values, ",")
}

// validateLookupURL returns an error if rawURL isn't an absolute URL with a
// host.
func validateLookupURL(rawURL string) (err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("url %q: %w", rawURL, err)
	} else if u.Hostname() == "" {
		return fmt.Errorf("url %q: host: %w", rawURL, errors.ErrNoValue)
	}

	return nil
}
