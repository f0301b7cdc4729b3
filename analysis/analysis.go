package analysis

import (
	"context"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/jonwraymond/toolgate/gate"
	"github.com/jonwraymond/toolgate/guard"
	"github.com/jonwraymond/toolgate/sandbox"
)

// Session is the unified facade for candidate analysis. It combines the
// hosted interpreter, the import gate, and the guard evaluator into a
// single API: load candidate sources, call candidate functions with the
// gate up, and check guard expressions over their results.
//
// Contract:
// - Concurrency: safe for concurrent use; candidate runs are serialized on
//   the hosted state, guard checks on the evaluator.
// - Ownership: Close releases both interpreters; the Session owns them.
type Session struct {
	st   *sandbox.State
	gate *gate.Gate
	ev   *guard.Evaluator
	rep  *guard.Report
	log  gate.Logger
}

// New creates a session with the given options.
func New(opts Options) (*Session, error) {
	opts.applyDefaults()

	st := sandbox.New(sandbox.WithExecutionTimeout(opts.ExecutionTimeout))

	var gateOpts []gate.Option
	if opts.Logger != nil {
		gateOpts = append(gateOpts, gate.WithLogger(opts.Logger))
	}

	return &Session{
		st:   st,
		gate: gate.New(st, gateOpts...),
		ev:   guard.NewEvaluator(),
		rep:  guard.NewReport(),
		log:  opts.Logger,
	}, nil
}

// Load runs candidate source in the hosted state without the gate, for the
// trusted setup phase: defining the candidate functions under analysis.
func (s *Session) Load(ctx context.Context, source string) error {
	return s.st.DoStringContext(ctx, source)
}

// RunSource executes candidate source with the gate installed.
func (s *Session) RunSource(ctx context.Context, source string) Result {
	start := time.Now()
	err := s.gate.With(func() error {
		return s.st.DoStringContext(ctx, source)
	})
	return Result{Duration: time.Since(start), Error: err}
}

// Call invokes a candidate function by global name with the gate installed
// and returns its results.
func (s *Session) Call(ctx context.Context, fn string, args ...lua.LValue) Result {
	start := time.Now()
	var values []lua.LValue
	err := s.gate.With(func() error {
		var callErr error
		values, callErr = s.st.Call(ctx, fn, args...)
		return callErr
	})
	return Result{Values: values, Duration: time.Since(start), Error: err}
}

// Import materializes a permitted module, or members of it, for building
// candidate inputs. The gate must be installed for the duration, so Import
// wraps the load in its own activation.
func (s *Session) Import(ctx context.Context, req gate.Request) ([]lua.LValue, error) {
	var vals []lua.LValue
	err := s.gate.With(func() error {
		var impErr error
		vals, impErr = s.gate.Import(ctx, req)
		return impErr
	})
	if err != nil {
		return nil, err
	}
	return vals, nil
}

// CheckGuard evaluates one named guard expression against a Go binding
// value and records the verdict in the session report.
func (s *Session) CheckGuard(name, expr string, value any) guard.Verdict {
	v := s.ev.EvaluateGo(expr, bindingName, value)
	s.record(name, v)
	return v
}

// CheckGuardJSON is CheckGuard for bindings carried as JSON documents.
func (s *Session) CheckGuardJSON(name, expr, doc string) guard.Verdict {
	v := s.ev.EvaluateJSON(expr, bindingName, doc)
	s.record(name, v)
	return v
}

// record stores a verdict in the report. A failure to record does not
// change the verdict the caller gets, but it must not vanish either.
func (s *Session) record(name string, v guard.Verdict) {
	if err := s.rep.Record(name, v); err != nil && s.log != nil {
		s.log.Logf("guard %q not recorded: %v", name, err)
	}
}

// bindingName is the variable guard expressions see their binding under.
const bindingName = "x"

// Report returns the accumulated guard report.
func (s *Session) Report() *guard.Report {
	return s.rep
}

// Gate exposes the session's import gate for advanced lifecycle control,
// such as holding one activation across several runs.
func (s *Session) Gate() *gate.Gate {
	return s.gate
}

// State exposes the hosted interpreter state for direct interaction during
// the trusted setup phase.
func (s *Session) State() *sandbox.State {
	return s.st
}

// Close releases the session's interpreters. Runs and checks after Close
// fail.
func (s *Session) Close() error {
	s.ev.Close()
	return s.st.Close()
}
