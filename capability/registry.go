// Package capability classifies module identifiers by the capability they
// expose to hosted code. The classification is compiled-in data: two disjoint
// sets of base module names, one denied and one permitted, with everything
// else left to the gate's deny-by-default resolution.
package capability

import "strings"

// Class is the classification of a module identifier.
type Class int

const (
	// Unknown means the module is in neither set. The gate resolves unknown
	// modules through the preload table only; the filesystem loader is
	// disabled while a gate is installed, so unknown names that are not
	// host-provided fail to load.
	Unknown Class = iota

	// Denied means the module exposes a capability hosted code must not
	// reach: filesystem, process control, networking, arbitrary-type
	// deserialization, low-level memory, code-object execution, terminals,
	// or the module-loading machinery itself.
	Denied

	// Permitted means the module is pure computation and safe to load.
	Permitted
)

// String returns the string representation of a Class.
func (c Class) String() string {
	switch c {
	case Denied:
		return "denied"
	case Permitted:
		return "permitted"
	default:
		return "unknown"
	}
}

// denied is the set of base module names hosted code may never load.
//
// "package" is the loading machinery itself and must stay denied: access to
// it is the path by which hosted code could re-wire require and resurrect
// any other entry in this set. "debug" is denied for the same reason; it can
// walk upvalues and registries to reach values the gate removed.
var denied = map[string]struct{}{
	"io":      {}, // filesystem
	"os":      {}, // process control, signals, environment
	"socket":  {}, // networking
	"net":     {}, // networking
	"http":    {}, // networking
	"marshal": {}, // deserialization that can materialize arbitrary values
	"pickle":  {}, // deserialization that can materialize arbitrary values
	"ffi":     {}, // foreign function / raw memory access
	"jit":     {}, // code-object manipulation
	"channel": {}, // cross-goroutine plumbing
	"pty":     {}, // pseudo-terminal control
	"debug":   {}, // interpreter introspection
	"package": {}, // the loading machinery itself
}

// permitted is the set of base module names hosted code may always load.
var permitted = map[string]struct{}{
	"math":      {},
	"string":    {},
	"table":     {},
	"coroutine": {},
	"bit32":     {},
	"utf8":      {},
	"runtime":   {}, // host introspection module (version, cache listing)
}

// Registry answers classification queries against the compiled-in sets.
// The zero value is not usable; call NewRegistry. A Registry is immutable
// and safe for concurrent use without locking.
type Registry struct {
	denied    map[string]struct{}
	permitted map[string]struct{}
}

// NewRegistry returns the registry over the compiled-in sets.
func NewRegistry() *Registry {
	return &Registry{denied: denied, permitted: permitted}
}

// BaseSegment returns the part of a dotted module name before the first
// separator. Capability is a property of the top-level module; every
// submodule inherits its parent's classification.
func BaseSegment(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// Denied reports whether the base segment of name is in the denied set.
func (r *Registry) Denied(name string) bool {
	_, ok := r.denied[BaseSegment(name)]
	return ok
}

// Permitted reports whether the base segment of name is in the permitted set.
func (r *Registry) Permitted(name string) bool {
	_, ok := r.permitted[BaseSegment(name)]
	return ok
}

// Classify returns the Class for a module name.
func (r *Registry) Classify(name string) Class {
	switch {
	case r.Denied(name):
		return Denied
	case r.Permitted(name):
		return Permitted
	default:
		return Unknown
	}
}

// DeniedNames returns the denied base names. The returned slice is a copy.
func (r *Registry) DeniedNames() []string {
	out := make([]string, 0, len(r.denied))
	for name := range r.denied {
		out = append(out, name)
	}
	return out
}

// PermittedNames returns the permitted base names. The returned slice is a copy.
func (r *Registry) PermittedNames() []string {
	out := make([]string, 0, len(r.permitted))
	for name := range r.permitted {
		out = append(out, name)
	}
	return out
}
