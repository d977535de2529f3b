package httpmod

import (
	"net/http"
	"strings"

	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/martok/palefill/rules"
)

// TypeResolver returns the resource type of a request.  ok is false if the
// request isn't of a handled type.
type TypeResolver func(r *http.Request) (t rules.ResourceType, ok bool)

// SecFetchDest is a [TypeResolver] that uses the Sec-Fetch-Dest header of the
// request.
func SecFetchDest(r *http.Request) (t rules.ResourceType, ok bool) {
	switch strings.ToLower(r.Header.Get(httphdr.SecFetchDest)) {
	case "document":
		return rules.TypeDocument, true
	case "iframe", "frame":
		return rules.TypeSubdocument, true
	case "script":
		return rules.TypeScript, true
	default:
		return 0, false
	}
}
