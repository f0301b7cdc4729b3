package gate

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/jonwraymond/toolgate/capability"
	"github.com/jonwraymond/toolgate/sandbox"
)

// dynamicExecGlobals are base-library functions that turn strings or files
// into runnable code. They are removed for the gated span alongside the
// denied module globals.
var dynamicExecGlobals = []string{"load", "loadstring", "dofile", "loadfile"}

// Gate controls module loading for one hosted state. Installing it replaces
// the state's require entry point with an interception hook, evicts denied
// modules from the module cache and the global table, and puts the Adapter
// at the front of the resolver chain. Uninstalling restores the state
// exactly as it was.
//
// Activation is reference-counted: any number of overlapping Install and
// Uninstall pairs share one real toggle. The hook goes in on the 0→1
// transition and comes out on the 1→0 transition.
//
// Contract:
// - Concurrency: Install, Uninstall, With and Import are safe for concurrent
//   use; interception itself takes no locks.
// - Errors: a failed Install leaves the gate idle; Uninstall without a
//   matching Install is a no-op.
// - Ownership: the Gate does not own the state; callers close the state
//   after the gate is idle.
type Gate struct {
	mu  sync.Mutex
	st  *sandbox.State
	reg *capability.Registry
	log Logger

	adapter *Adapter

	// Everything below is populated on the 0→1 transition and read without
	// locking by the interception path; it only changes while no hosted
	// code can run.
	depth         int
	orig          lua.LValue
	hook          *lua.LFunction
	searcher      *lua.LFunction
	hostSearcher  *lua.LFunction
	preload       *lua.LTable
	savedChain    []lua.LValue
	savedGlobals  map[string]lua.LValue
	evicted       map[string]lua.LValue
	permittedMods map[string]lua.LValue
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger attaches a logger for lifecycle transitions.
func WithLogger(log Logger) Option {
	return func(g *Gate) {
		g.log = log
	}
}

// New creates a gate over the given hosted state.
func New(st *sandbox.State, opts ...Option) *Gate {
	reg := capability.NewRegistry()
	g := &Gate{
		st:      st,
		reg:     reg,
		adapter: NewAdapter(reg),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Install activates the gate. Only the first of overlapping activations
// touches the state; the rest return immediately.
func (g *Gate) Install() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.depth++
	if g.depth > 1 {
		return nil
	}

	if err := g.st.Do(g.installHooks); err != nil {
		g.depth--
		return err
	}
	g.logf("gate installed")
	return nil
}

// Uninstall deactivates one activation. Only the last of overlapping
// activations restores the state. Calling Uninstall with no matching
// Install is a no-op; defensive double-release on error paths is expected.
func (g *Gate) Uninstall() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.depth == 0 {
		return
	}
	g.depth--
	if g.depth > 0 {
		return
	}

	if err := g.st.Do(g.uninstallHooks); err != nil {
		// The state is gone (closed); nothing left to restore.
		g.logf("gate restore skipped: %v", err)
		return
	}
	g.logf("gate uninstalled")
}

// With runs fn with the gate installed and releases the activation on every
// exit path, including panics.
func (g *Gate) With(fn func() error) error {
	if err := g.Install(); err != nil {
		return err
	}
	defer g.Uninstall()
	return fn()
}

// Depth returns the current activation count.
func (g *Gate) Depth() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depth
}

// Active reports whether the gate is installed.
func (g *Gate) Active() bool {
	return g.Depth() > 0
}

// Import checks a load request and, when it passes, performs it through the
// original entry point on behalf of the engine. With a FromList it returns
// the requested members in order; otherwise it returns the module itself.
func (g *Gate) Import(ctx context.Context, req Request) ([]lua.LValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.depth == 0 {
		return nil, ErrNotInstalled
	}

	if err := g.Check(req); err != nil {
		return nil, err
	}
	name, err := resolve(req)
	if err != nil {
		return nil, err
	}

	var out []lua.LValue
	err = g.st.Do(func(L *lua.LState) error {
		L.Push(g.orig)
		L.Push(lua.LString(name))
		if err := L.PCall(1, 1, nil); err != nil {
			return err
		}
		mod := L.Get(-1)
		L.Pop(1)

		if len(req.FromList) == 0 {
			out = []lua.LValue{mod}
			return nil
		}
		out = make([]lua.LValue, 0, len(req.FromList))
		for _, member := range req.FromList {
			out = append(out, L.GetField(mod, member))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// installHooks performs the 0→1 transition. Runs under the state lock.
func (g *Gate) installHooks(L *lua.LState) error {
	pkg, ok := L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return ErrNoLoadingMachinery
	}
	orig := L.GetGlobal("require")
	if orig.Type() != lua.LTFunction {
		return ErrNoLoadingMachinery
	}
	registry := L.Get(lua.RegistryIndex)
	loaded, ok := L.GetField(registry, "_LOADED").(*lua.LTable)
	if !ok {
		return ErrNoLoadingMachinery
	}
	chain, ok := L.GetField(registry, "_LOADERS").(*lua.LTable)
	if !ok {
		return ErrNoLoadingMachinery
	}

	// State captured now, while the machinery is still intact: the loader
	// path must not re-derive it later, because the machinery itself is
	// denied once the gate is up.
	g.orig = orig
	g.preload, _ = L.GetField(pkg, "preload").(*lua.LTable)
	if g.hook == nil {
		g.hook = L.NewFunction(g.interceptRequire)
		g.searcher = L.NewFunction(g.adapter.searchModule)
		g.hostSearcher = L.NewFunction(g.searchHostModules)
	}

	// Primary entry point.
	L.SetGlobal("require", g.hook)

	// Evict denied modules already cached, walking a pre-computed key
	// snapshot rather than the live table.
	keys := tableStringKeys(loaded)
	g.evicted = make(map[string]lua.LValue)
	for _, key := range keys {
		if g.reg.Denied(key) {
			g.evicted[key] = loaded.RawGetString(key)
			loaded.RawSetString(key, lua.LNil)
		}
	}

	// Permitted modules are pinned from the pre-gate state so loads during
	// the gated span hand back the identical objects.
	g.permittedMods = make(map[string]lua.LValue)
	for _, name := range g.reg.PermittedNames() {
		v := loaded.RawGetString(name)
		if v == lua.LNil {
			v = L.GetGlobal(name)
		}
		if v != lua.LNil {
			g.permittedMods[name] = v
		}
	}

	// Denied globals and dynamic code execution go dark for the gated span.
	g.savedGlobals = make(map[string]lua.LValue)
	for _, name := range g.reg.DeniedNames() {
		g.stashGlobal(L, name)
	}
	for _, name := range dynamicExecGlobals {
		g.stashGlobal(L, name)
	}

	// Resolver chain: adapter first, then the host-module searcher. The
	// stock loaders come out entirely; they reach through the package
	// global, which is gone, and the filesystem loader must be inert.
	if !chainContains(chain, g.searcher) {
		g.savedChain = drainChain(chain)
		chain.Append(g.searcher)
		chain.Append(g.hostSearcher)
	}

	return nil
}

// uninstallHooks performs the 1→0 transition. Runs under the state lock.
func (g *Gate) uninstallHooks(L *lua.LState) error {
	L.SetGlobal("require", g.orig)

	for name, v := range g.savedGlobals {
		L.SetGlobal(name, v)
	}

	registry := L.Get(lua.RegistryIndex)
	if loaded, ok := L.GetField(registry, "_LOADED").(*lua.LTable); ok {
		for name, v := range g.evicted {
			loaded.RawSetString(name, v)
		}
	}

	if chain, ok := L.GetField(registry, "_LOADERS").(*lua.LTable); ok && g.savedChain != nil && chainContains(chain, g.searcher) {
		drainChain(chain)
		for _, loader := range g.savedChain {
			chain.Append(loader)
		}
	}

	g.orig = nil
	g.preload = nil
	g.savedChain = nil
	g.savedGlobals = nil
	g.evicted = nil
	g.permittedMods = nil
	return nil
}

// stashGlobal snapshots and clears one global binding if present.
func (g *Gate) stashGlobal(L *lua.LState, name string) {
	if v := L.GetGlobal(name); v != lua.LNil {
		g.savedGlobals[name] = v
		L.SetGlobal(name, lua.LNil)
	}
}

// interceptRequire is the replacement for the primary entry point. It
// checks the request against policy and then tail-delegates to the original
// entry point unchanged. All state it reads was pinned at install.
func (g *Gate) interceptRequire(L *lua.LState) int {
	name := L.CheckString(1)

	if err := g.Check(Request{Name: name}); err != nil {
		// Same shape as any other failed load.
		L.RaiseError("module '%s' not found", name)
		return 0
	}

	orig := g.orig
	if orig == nil {
		// A stashed hook called after the gate came down.
		L.RaiseError("module '%s' not found", name)
		return 0
	}
	L.Push(orig)
	L.Push(lua.LString(name))
	L.Call(1, 1)
	return 1
}

// searchHostModules is the second chain entry while gated. It serves
// host-preloaded modules and pinned permitted modules from references
// captured at install, so resolution works without the package global.
func (g *Gate) searchHostModules(L *lua.LState) int {
	name := L.CheckString(1)

	if g.preload != nil {
		if loader := g.preload.RawGetString(name); loader != lua.LNil {
			L.Push(loader)
			return 1
		}
	}

	if mod, ok := g.permittedMods[name]; ok {
		L.Push(L.NewFunction(func(L *lua.LState) int {
			L.Push(mod)
			return 1
		}))
		return 1
	}

	L.Push(lua.LString(fmt.Sprintf("\n\tno field package.preload['%s']", name)))
	return 1
}

// tableStringKeys snapshots the string keys of a table.
func tableStringKeys(tbl *lua.LTable) []string {
	var keys []string
	tbl.ForEach(func(k, _ lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			keys = append(keys, string(ks))
		}
	})
	return keys
}

// chainContains reports whether the resolver chain holds the exact searcher.
func chainContains(chain *lua.LTable, searcher *lua.LFunction) bool {
	if searcher == nil {
		return false
	}
	found := false
	chain.ForEach(func(_, v lua.LValue) {
		if fn, ok := v.(*lua.LFunction); ok && fn == searcher {
			found = true
		}
	})
	return found
}

// drainChain removes every entry from the resolver chain and returns them
// in order.
func drainChain(chain *lua.LTable) []lua.LValue {
	n := chain.Len()
	saved := make([]lua.LValue, 0, n)
	for i := 1; i <= n; i++ {
		saved = append(saved, chain.RawGetInt(i))
	}
	for i := n; i >= 1; i-- {
		chain.Remove(i)
	}
	return saved
}
