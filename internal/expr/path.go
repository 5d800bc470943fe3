// Package expr implements the Expression Compiler (spec §4.3): the
// condition dialect (rich boolean trees), the arithmetic dialect (feature
// expressions, backed by github.com/PaesslerAG/gval), and the template
// compiler shared by both for `${ns.path}` interpolation.
package expr

import "strings"

// Namespace is one of the eight execution-context namespaces plus the
// synthetic `list` namespace used only inside `in list.<id>` atoms.
type Namespace string

const (
	NsEvent    Namespace = "event"
	NsFeatures Namespace = "features"
	NsAPI      Namespace = "api"
	NsService  Namespace = "service"
	NsVars     Namespace = "vars"
	NsSys      Namespace = "sys"
	NsEnv      Namespace = "env"
	NsResults  Namespace = "results"
	NsList     Namespace = "list"
)

var knownNamespaces = map[string]Namespace{
	"event": NsEvent, "features": NsFeatures, "api": NsAPI, "service": NsService,
	"vars": NsVars, "sys": NsSys, "env": NsEnv, "results": NsResults, "list": NsList,
}

// IsNamespace reports whether s is a recognized namespace prefix.
func IsNamespace(s string) bool {
	_, ok := knownNamespaces[s]
	return ok
}

// Path is a dot-separated reference into the execution context, e.g.
// `event.geo.country` or `features.f`.
type Path struct {
	Namespace Namespace
	Segments  []string // segments after the namespace
}

// String renders the path back to its `ns.a.b.c` form.
func (p Path) String() string {
	if len(p.Segments) == 0 {
		return string(p.Namespace)
	}
	return string(p.Namespace) + "." + strings.Join(p.Segments, ".")
}

// ParsePath parses a dotted identifier into a namespace Path. ok is false if
// the first segment is not a known namespace (the caller should then treat
// the identifier as a DatabaseField reference instead).
func ParsePath(raw string) (Path, bool) {
	parts := strings.Split(raw, ".")
	if len(parts) == 0 {
		return Path{}, false
	}
	ns, ok := knownNamespaces[parts[0]]
	if !ok {
		return Path{}, false
	}
	return Path{Namespace: ns, Segments: parts[1:]}, true
}
