package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func TestNewStateHasFullStdlib(t *testing.T) {
	st := New()
	defer st.Close()

	err := st.DoString(`
		assert(io ~= nil, "io missing")
		assert(os ~= nil, "os missing")
		assert(math ~= nil, "math missing")
		assert(string ~= nil, "string missing")
		assert(package ~= nil, "package missing")
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
}

func TestDoStringSyntaxError(t *testing.T) {
	st := New()
	defer st.Close()

	if err := st.DoString(`this is not lua`); err == nil {
		t.Fatal("DoString() with invalid source: error = nil, want non-nil")
	}
}

func TestCall(t *testing.T) {
	st := New()
	defer st.Close()

	if err := st.DoString(`function add(a, b) return a + b end`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	results, err := st.Call(context.Background(), "add", lua.LNumber(2), lua.LNumber(3))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Call() returned %d values, want 1", len(results))
	}
	if results[0] != lua.LNumber(5) {
		t.Errorf("Call() = %v, want 5", results[0])
	}
}

func TestCallNoResults(t *testing.T) {
	st := New()
	defer st.Close()

	if err := st.DoString(`function noop() end`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	results, err := st.Call(context.Background(), "noop")
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if results == nil {
		t.Error("Call() = nil, want empty slice")
	}
	if len(results) != 0 {
		t.Errorf("Call() returned %d values, want 0", len(results))
	}
}

func TestCallMissingFunction(t *testing.T) {
	st := New()
	defer st.Close()

	if _, err := st.Call(context.Background(), "nothere"); err == nil {
		t.Fatal("Call() on missing function: error = nil, want non-nil")
	}
}

func TestCallNonFunction(t *testing.T) {
	st := New()
	defer st.Close()

	if err := st.DoString(`thing = 42`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if _, err := st.Call(context.Background(), "thing"); err == nil {
		t.Fatal("Call() on non-function: error = nil, want non-nil")
	}
}

func TestClosedState(t *testing.T) {
	st := New()
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := st.DoString(`x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() after Close error = %v, want ErrStateClosed", err)
	}
	if _, err := st.Call(context.Background(), "f"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Call() after Close error = %v, want ErrStateClosed", err)
	}
	if !st.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
}

func TestCloseIdempotent(t *testing.T) {
	st := New()
	if err := st.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestIntrospectionModule(t *testing.T) {
	st := New()
	defer st.Close()

	err := st.DoString(`
		local rt = require("runtime")
		assert(type(rt) == "table", "runtime is not a table")
		assert(type(rt.version) == "string", "runtime.version is not a string")
		assert(type(rt.modules) == "table", "runtime.modules is not a table")
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
}

func TestIntrospectionCacheIsLive(t *testing.T) {
	st := New()
	defer st.Close()

	err := st.DoString(`
		local rt = require("runtime")
		assert(rt.modules["runtime"] ~= nil, "cache does not see the runtime module itself")
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
}

func TestExecutionTimeout(t *testing.T) {
	st := New(WithExecutionTimeout(100 * time.Millisecond))
	defer st.Close()

	start := time.Now()
	err := st.DoString(`while true do end`)
	if err == nil {
		t.Fatal("DoString() with infinite loop: error = nil, want timeout")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v, want well under 5s", elapsed)
	}
}

func TestDoStringContextCancel(t *testing.T) {
	st := New(WithExecutionTimeout(0))
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if err := st.DoStringContext(ctx, `while true do end`); err == nil {
		t.Fatal("DoStringContext() with cancelled context: error = nil, want non-nil")
	}
}
