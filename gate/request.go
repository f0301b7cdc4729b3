package gate

import (
	"fmt"
	"strings"

	"github.com/jonwraymond/toolgate/capability"
	"github.com/jonwraymond/toolgate/sandbox"
)

// Request describes one module-load attempt to be checked against policy.
// Requests are transient; they are built per load attempt and never stored.
type Request struct {
	// Name is the requested module name. With Level > 0 it is interpreted
	// relative to Package; otherwise it is the fully-qualified name.
	Name string

	// FromList names members the requester wants plucked from the module,
	// for selective loads. Empty for whole-module loads.
	FromList []string

	// Level is the relative-reference depth: 0 for absolute, 1 for the
	// requester's own package, each additional level one package up.
	Level int

	// Package is the requester's package path, used only when Level > 0.
	Package string
}

// resolve returns the fully-qualified module name for the request.
// For Level > 0 the name is resolved against Package by trimming Level-1
// trailing segments and appending Name when it is non-empty.
func resolve(req Request) (string, error) {
	if req.Level <= 0 {
		return req.Name, nil
	}
	if req.Package == "" {
		return "", fmt.Errorf("relative reference %q with no requester package", req.Name)
	}

	segments := strings.Split(req.Package, ".")
	trim := req.Level - 1
	if trim >= len(segments) {
		return "", fmt.Errorf("relative reference escapes top-level package %q", segments[0])
	}
	base := strings.Join(segments[:len(segments)-trim], ".")
	if req.Name == "" {
		return base, nil
	}
	return base + "." + req.Name, nil
}

// Check runs the interception algorithm against the request without side
// effects. It returns a *DeniedError when the load must be refused and nil
// when it may proceed to the underlying loader. Check takes no locks; it
// reads only the immutable registry, so concurrent loads never contend.
func (g *Gate) Check(req Request) error {
	name, err := resolve(req)
	if err != nil {
		return err
	}

	if g.reg.Denied(name) {
		return &DeniedError{Name: name}
	}

	// A benign parent can still be asked for a denied member: selective
	// loads are checked entry by entry.
	for _, member := range req.FromList {
		if g.reg.Denied(member) {
			return &DeniedError{Name: name + "." + member}
		}
	}

	// Selective load of the live module cache off the introspection module.
	// Blocking it here closes the one path that hands hosted code the cache
	// table without going through attribute access, which could be used to
	// resurrect an evicted module.
	if name == sandbox.IntrospectionModule {
		for _, member := range req.FromList {
			if member == sandbox.CacheMember {
				return &DeniedError{Name: name + "." + member}
			}
		}
	}

	return nil
}

// Classify reports the policy class for a module name, mostly useful for
// engine-side diagnostics.
func (g *Gate) Classify(name string) capability.Class {
	return g.reg.Classify(name)
}
