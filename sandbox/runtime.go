package sandbox

import lua "github.com/yuin/gopher-lua"

// Names of the host introspection module and its members. The module is
// permitted for hosted code; it carries interpreter facts useful for
// diagnostics. Its CacheMember field is a live reference to the module
// cache, which is why the gate refuses selective imports of it.
const (
	// IntrospectionModule is the name of the host-provided module exposing
	// interpreter introspection to hosted code.
	IntrospectionModule = "runtime"

	// CacheMember is the IntrospectionModule field holding the live module
	// cache table.
	CacheMember = "modules"

	// VersionMember is the IntrospectionModule field holding the hosted
	// interpreter version string.
	VersionMember = "version"
)

// runtimeLoader builds the introspection module on first require.
func runtimeLoader(L *lua.LState) int {
	mod := L.NewTable()
	L.SetField(mod, VersionMember, lua.LString(lua.LuaVersion))

	// Live reference, same table the loader machinery maintains.
	loaded := L.GetField(L.Get(lua.RegistryIndex), "_LOADED")
	L.SetField(mod, CacheMember, loaded)

	L.Push(mod)
	return 1
}
