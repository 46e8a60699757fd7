// Package edge holds the request routing table handed to the CDN. The same
// table is used to synthesize the CloudFront behaviors and to route requests
// in the local emulator.
package edge

import (
	"net/http"
	"slices"
	"strings"
)

type Origin string

const (
	OriginAssets   Origin = "assets"
	OriginRenderer Origin = "renderer"
	OriginPresign  Origin = "presign"
)

// PresignPath is where browsers ask for a signed link.
const PresignPath = "/create-presigned-url"

var (
	MethodsGetHead = []string{http.MethodGet, http.MethodHead}
	MethodsAll     = []string{
		http.MethodGet, http.MethodHead, http.MethodOptions,
		http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete,
	}
)

type Rule struct {
	PathPattern string
	Origin      Origin
	Methods     []string
	// Cached responses may be served from the edge cache.
	Cached bool
	// ViewerRequest attaches the viewer-request function to the rule.
	ViewerRequest bool
}

func (r Rule) Allows(method string) bool {
	return slices.Contains(r.Methods, strings.ToUpper(method))
}

type Options struct {
	EnvViewerFunction bool
}

// Table is an ordered rule list plus a default rule; the first match wins.
type Table struct {
	rules []Rule
	def   Rule
}

func NewTable(def Rule, rules ...Rule) Table {
	return Table{rules: slices.Clone(rules), def: def}
}

func DefaultTable(opts Options) Table {
	return NewTable(
		Rule{PathPattern: "*", Origin: OriginRenderer, Methods: MethodsAll},
		Rule{PathPattern: "/_next/static/*", Origin: OriginAssets, Methods: MethodsGetHead, Cached: true},
		Rule{PathPattern: "/public/*", Origin: OriginAssets, Methods: MethodsGetHead, Cached: true},
		Rule{PathPattern: "/env/*", Origin: OriginAssets, Methods: MethodsGetHead, Cached: true, ViewerRequest: opts.EnvViewerFunction},
		Rule{PathPattern: PresignPath, Origin: OriginPresign, Methods: MethodsAll},
	)
}

// Rules returns the ordered non-default rules.
func (t Table) Rules() []Rule {
	return slices.Clone(t.rules)
}

func (t Table) Default() Rule {
	return t.def
}

func (t Table) Match(path string) Rule {
	for _, r := range t.rules {
		if MatchPattern(r.PathPattern, path) {
			return r
		}
	}
	return t.def
}
