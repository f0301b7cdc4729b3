package guard

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// Errors for evaluator operations. Evaluation itself never returns an
// error; failures are absorbed into Undetermined.
var (
	// ErrEvaluatorClosed is returned when using a closed evaluator.
	ErrEvaluatorClosed = errors.New("guard evaluator is closed")

	// ErrInvalidBinding is returned for binding data that cannot be parsed.
	ErrInvalidBinding = errors.New("invalid guard binding")
)

// chunkName labels compiled guard expressions in interpreter errors.
const chunkName = "<guard>"

// strippedBuiltins are base-library globals removed from the evaluation
// environment. What remains after stripping is pure computation: type,
// tostring, tonumber, pairs, ipairs, next, select, assert, error, unpack,
// plus the math, string, and table libraries.
var strippedBuiltins = []string{
	"load", "loadstring", "dofile", "loadfile",
	"getmetatable", "setmetatable", "getfenv", "setfenv",
	"rawget", "rawset", "rawequal", "rawlen",
	"collectgarbage", "print", "pcall", "xpcall",
	"module", "newproxy", "_G",
}

// Evaluator compiles and evaluates single guard expressions against one
// bound value at a time. It owns a private bare interpreter carrying only a
// minimal builtin set; the module-loading machinery is never opened in it.
//
// Contract:
// - Concurrency: safe for concurrent use; evaluations are serialized.
// - Errors: Evaluate never fails; anything that goes wrong is Undetermined.
// - Ownership: lua.LValue bindings must come from this evaluator's own
//   conversion helpers.
//
// Evaluators are meant to run while an import gate is installed on the
// hosting state; if an expression slips past validation, whatever it tries
// to load still hits the firewall.
type Evaluator struct {
	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

// NewEvaluator creates an evaluator with the minimal environment.
func NewEvaluator() *Evaluator {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range strippedBuiltins {
		L.SetGlobal(name, lua.LNil)
	}
	return &Evaluator{L: L}
}

// Evaluate compiles expr as a single expression, binds exactly {name:
// value}, and reports whether the expression holds. Compile rejections and
// runtime failures of any category yield Undetermined. A non-finite numeric
// result also yields Undetermined: the hosted arithmetic produces infinities
// for division by zero instead of failing.
func (ev *Evaluator) Evaluate(expr, name string, value lua.LValue) Verdict {
	proto, err := compile(expr)
	if err != nil {
		return Undetermined
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.closed {
		return Undetermined
	}
	return ev.run(proto, name, value)
}

// EvaluateGo is Evaluate for plain Go binding values (bool, integer and
// float kinds, string, nil, and nested []any / map[string]any).
func (ev *Evaluator) EvaluateGo(expr, name string, value any) Verdict {
	proto, err := compile(expr)
	if err != nil {
		return Undetermined
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.closed {
		return Undetermined
	}
	lv, err := ev.toLua(value)
	if err != nil {
		return Undetermined
	}
	return ev.run(proto, name, lv)
}

// run executes a compiled guard under the evaluator lock.
func (ev *Evaluator) run(proto *lua.FunctionProto, name string, value lua.LValue) Verdict {
	L := ev.L

	var prev lua.LValue = lua.LNil
	if name != "" {
		prev = L.GetGlobal(name)
		L.SetGlobal(name, value)
		defer L.SetGlobal(name, prev)
	}

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, 1, nil); err != nil {
		return Undetermined
	}
	ret := L.Get(-1)
	L.Pop(1)

	if n, ok := ret.(lua.LNumber); ok {
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Undetermined
		}
	}
	if lua.LVAsBool(ret) {
		return Satisfied
	}
	return NotSatisfied
}

// Close releases the evaluator's interpreter. Evaluations after Close
// return Undetermined.
func (ev *Evaluator) Close() {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.closed {
		return
	}
	ev.L.Close()
	ev.closed = true
}

// compile parses expr in single-expression shape, validates the tree, and
// compiles it. Wrapping in "return (...)" makes statements, assignments,
// and multi-expression tricks parse errors before validation even runs.
func compile(expr string) (*lua.FunctionProto, error) {
	source := "return (" + expr + "\n)"
	chunk, err := parse.Parse(strings.NewReader(source), chunkName)
	if err != nil {
		return nil, err
	}
	if err := validateChunk(chunk); err != nil {
		return nil, err
	}
	return lua.Compile(chunk, chunkName)
}

// toLua converts a Go binding value. Callers hold the evaluator lock.
func (ev *Evaluator) toLua(value any) (lua.LValue, error) {
	switch v := value.(type) {
	case nil:
		return lua.LNil, nil
	case bool:
		return lua.LBool(v), nil
	case int:
		return lua.LNumber(v), nil
	case int32:
		return lua.LNumber(v), nil
	case int64:
		return lua.LNumber(v), nil
	case float32:
		return lua.LNumber(v), nil
	case float64:
		return lua.LNumber(v), nil
	case string:
		return lua.LString(v), nil
	case []any:
		tbl := ev.L.NewTable()
		for _, el := range v {
			lv, err := ev.toLua(el)
			if err != nil {
				return nil, err
			}
			tbl.Append(lv)
		}
		return tbl, nil
	case map[string]any:
		tbl := ev.L.NewTable()
		for k, el := range v {
			lv, err := ev.toLua(el)
			if err != nil {
				return nil, err
			}
			tbl.RawSetString(k, lv)
		}
		return tbl, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidBinding, value)
	}
}

// Validate reports whether expr would compile under the restriction rules,
// without evaluating it. Useful for engine-side pre-flight checks.
func Validate(expr string) error {
	_, err := compile(expr)
	return err
}
