package fix

import (
	"strings"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/stringutil"
	"golang.org/x/net/html"
)

// Default values of the attributes of external scripts.
const (
	DefaultCrossOrigin = "anonymous"
	DefaultScriptType  = "application/javascript"
)

// Script is either an inline script or a descriptor of an external one.
type Script struct {
	// Attrs are additional attributes of an external script tag, rendered
	// after the standard ones in order.
	Attrs container.KeyValues[string, string]

	// Source is the text of an inline script.  If it's not empty, all other
	// fields are ignored.
	Source string

	// Src is the URL of an external script.
	Src string

	// Integrity is the subresource integrity metadata of an external script.
	// It's omitted if empty.
	Integrity string

	// CrossOrigin is the CORS mode of an external script.  If empty,
	// [DefaultCrossOrigin] is used.
	CrossOrigin string

	// Type is the MIME type of an external script.  If empty,
	// [DefaultScriptType] is used.
	Type string
}

// InlineScript returns an inline script with the given source.
func InlineScript(src string) (s *Script) {
	return &Script{Source: src}
}

// IsInline returns true if s is an inline script.
func (s *Script) IsInline() (ok bool) {
	return s.Source != ""
}

// writeTag writes the script tag of an external script to b.
func (s *Script) writeTag(b *strings.Builder) {
	crossOrigin := s.CrossOrigin
	if crossOrigin == "" {
		crossOrigin = DefaultCrossOrigin
	}

	typ := s.Type
	if typ == "" {
		typ = DefaultScriptType
	}

	b.WriteString("<script")
	writeAttr(b, "crossorigin", crossOrigin)
	if s.Integrity != "" {
		writeAttr(b, "integrity", s.Integrity)
	}

	writeAttr(b, "type", typ)
	writeAttr(b, "src", s.Src)
	for _, kv := range s.Attrs {
		writeAttr(b, kv.Key, kv.Value)
	}

	b.WriteString("></script>")
}

// writeAttr writes an attribute with an escaped value to b.
func writeAttr(b *strings.Builder, name, value string) {
	stringutil.WriteToBuilder(b, " ", name, `="`, html.EscapeString(value), `"`)
}

// wrapInline returns the source of an inline script wrapped into a function
// called with the global this.
func wrapInline(src string) (wrapped string) {
	return "(function(){" + src + "}).call(this);\n"
}
