package gate

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/jonwraymond/toolgate/capability"
)

// Finder is the legacy single-phase resolver protocol: one query that either
// claims the module by returning a loader or declines with nil.
type Finder interface {
	// FindModule returns the loader responsible for name, or nil.
	FindModule(name string) Loader
}

// Loader finalizes a located module.
type Loader interface {
	// ExecModule runs the located module's body.
	ExecModule(spec *ModuleSpec) error
}

// SpecFinder is the two-phase resolver protocol: locate a module spec, then
// create and execute the module object it describes.
type SpecFinder interface {
	// FindSpec returns a spec for name, or nil when not responsible.
	FindSpec(name string) *ModuleSpec

	// CreateModule returns the module object for the spec, or lua.LNil to
	// accept the runtime's default module creation.
	CreateModule(spec *ModuleSpec) lua.LValue

	// ExecModule runs the located module's body.
	ExecModule(spec *ModuleSpec) error
}

// ModuleSpec describes a located module: its name, the origin label the
// resolver attached, and the loader that claimed it.
type ModuleSpec struct {
	Name   string
	Origin string
	Loader Loader
}

// gatedOrigin labels specs produced by the Adapter.
const gatedOrigin = "gated"

// Adapter is the resolver-chain enforcement layer. It sits at the front of
// the hosted runtime's loader chain and claims exactly the denied modules;
// executing one always fails. It implements both resolver protocols, since
// either may be driven depending on which chain shape the host keeps alive.
//
// The Adapter never substitutes module content; it only blocks. It is
// stateless apart from the registry and is safe for concurrent use.
type Adapter struct {
	reg *capability.Registry
}

// NewAdapter creates an adapter over the given registry.
func NewAdapter(reg *capability.Registry) *Adapter {
	return &Adapter{reg: reg}
}

// FindModule implements the legacy protocol: the adapter claims denied
// modules and declines everything else.
func (a *Adapter) FindModule(name string) Loader {
	if a.reg.Denied(name) {
		return a
	}
	return nil
}

// FindSpec implements the locate phase of the two-phase protocol. It defers
// to FindModule and wraps a claim into a spec bound to the adapter.
func (a *Adapter) FindSpec(name string) *ModuleSpec {
	loader := a.FindModule(name)
	if loader == nil {
		return nil
	}
	return &ModuleSpec{Name: name, Origin: gatedOrigin, Loader: loader}
}

// CreateModule always returns lua.LNil: the adapter has no preference for
// how module objects are made because no module it claims ever executes.
func (a *Adapter) CreateModule(spec *ModuleSpec) lua.LValue {
	return lua.LNil
}

// ExecModule unconditionally fails. Reaching it means chain resolution
// located a denied module.
func (a *Adapter) ExecModule(spec *ModuleSpec) error {
	return &DeniedError{Name: spec.Name}
}

// searchModule bridges the adapter into the hosted runtime's loader chain.
// It drives the two-phase protocol: a spec is located, module creation is
// delegated, and execution raises the denial as an ordinary load failure.
func (a *Adapter) searchModule(L *lua.LState) int {
	name := L.CheckString(1)

	spec := a.FindSpec(name)
	if spec == nil {
		L.Push(lua.LString(fmt.Sprintf("\n\tno gated entry for module '%s'", name)))
		return 1
	}

	L.Push(L.NewFunction(func(L *lua.LState) int {
		if mod := a.CreateModule(spec); mod != lua.LNil {
			L.Push(mod)
			return 1
		}
		err := spec.Loader.ExecModule(spec)
		// Indistinguishable from a module that does not exist.
		L.RaiseError("module '%s' not found", errName(err, spec.Name))
		return 0
	}))
	return 1
}

// errName extracts the offending name from a denial, falling back to the
// spec name.
func errName(err error, fallback string) string {
	if de, ok := err.(*DeniedError); ok && de.Name != "" {
		return de.Name
	}
	return fallback
}

// Interface compliance is part of the package contract.
var (
	_ Finder     = (*Adapter)(nil)
	_ Loader     = (*Adapter)(nil)
	_ SpecFinder = (*Adapter)(nil)
)
