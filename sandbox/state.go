// Package sandbox manages the hosted Lua interpreter that candidate
// functions execute in. It wraps gopher-lua with locking (an LState is not
// goroutine-safe), panic recovery, best-effort execution timeouts, and a
// channel-based executor that serializes work from many goroutines onto the
// single goroutine that owns the state.
//
// The state starts with the full standard library open: before a gate is
// installed the host side is trusted and may use it freely. Installing a
// gate (package gate) snapshots and removes the dangerous parts for the
// duration of untrusted execution.
package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single DoString or Call. Long-running
// hosted code is aborted through the interpreter's context support.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps a gopher-lua interpreter for hosting untrusted code.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use; operations on the
//   underlying interpreter are serialized by an internal mutex.
// - Errors: execution failures are returned, never panicked; a closed state
//   returns ErrStateClosed from every method.
// - Ownership: values returned from Call belong to the interpreter and must
//   not be used after Close.
type State struct {
	mu sync.Mutex
	L  *lua.LState

	executionTimeout time.Duration
	closed           bool
}

// Option configures a State.
type Option func(*State)

// WithExecutionTimeout sets the per-execution timeout for DoString and Call.
// Zero disables the timeout.
func WithExecutionTimeout(d time.Duration) Option {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// New creates a hosted interpreter state with the full standard library and
// the host "runtime" introspection module preloaded.
func New(opts ...Option) *State {
	s := &State{
		executionTimeout: DefaultExecutionTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState()
	s.L.PreloadModule(IntrospectionModule, runtimeLoader)
	return s
}

// Do runs fn against the interpreter under the state lock with panic
// recovery. The gate and engine integration layers use this to keep every
// interpreter touch serialized.
func (s *State) Do(fn func(L *lua.LState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return recovered(func() error { return fn(s.L) })
}

// DoString executes a chunk of hosted source.
func (s *State) DoString(code string) error {
	return s.DoStringContext(context.Background(), code)
}

// DoStringContext executes a chunk of hosted source, honoring ctx and the
// configured execution timeout.
func (s *State) DoStringContext(ctx context.Context, code string) error {
	return s.Do(func(L *lua.LState) error {
		restore, cancel := s.applyContext(ctx, L)
		defer cancel()
		defer restore()
		return L.DoString(code)
	})
}

// Call invokes a global hosted function with the given arguments and returns
// its results. Returns an empty slice, not nil, when the function produces
// no values.
func (s *State) Call(ctx context.Context, fn string, args ...lua.LValue) ([]lua.LValue, error) {
	var results []lua.LValue
	err := s.Do(func(L *lua.LState) error {
		fnVal := L.GetGlobal(fn)
		if fnVal == lua.LNil {
			return fmt.Errorf("function %q not found", fn)
		}
		if fnVal.Type() != lua.LTFunction {
			return fmt.Errorf("%q is not a function (got %s)", fn, fnVal.Type())
		}

		restore, cancel := s.applyContext(ctx, L)
		defer cancel()
		defer restore()

		top := L.GetTop()
		L.Push(fnVal)
		for _, arg := range args {
			L.Push(arg)
		}
		if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
			return err
		}

		n := L.GetTop() - top
		results = make([]lua.LValue, 0, n)
		for i := 0; i < n; i++ {
			results = append(results, L.Get(top+i+1))
		}
		L.Pop(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// applyContext attaches ctx (plus the execution timeout) to the interpreter
// and returns a restore function detaching it again.
func (s *State) applyContext(ctx context.Context, L *lua.LState) (restore func(), cancel context.CancelFunc) {
	cancel = func() {}
	if s.executionTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.executionTimeout)
	}
	L.SetContext(ctx)
	return func() { L.RemoveContext() }, cancel
}

// Close releases the interpreter. Close is idempotent.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}

// IsClosed reports whether the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// recovered runs fn, converting interpreter panics into errors.
func recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interpreter panic: %v", r)
		}
	}()
	return fn()
}
