package guard

import (
	"fmt"

	"github.com/tidwall/gjson"
	lua "github.com/yuin/gopher-lua"
)

// BindingFromJSON converts a JSON document into a binding value for this
// evaluator. Engines that receive guard checks over the wire hand the
// engine-chosen input through here without decoding it themselves.
func (ev *Evaluator) BindingFromJSON(doc string) (lua.LValue, error) {
	if !gjson.Valid(doc) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidBinding)
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.closed {
		return nil, ErrEvaluatorClosed
	}
	return ev.fromJSON(gjson.Parse(doc)), nil
}

// EvaluateJSON compiles expr and evaluates it against a binding carried as
// JSON. Binding parse failures are Undetermined like every other failure.
func (ev *Evaluator) EvaluateJSON(expr, name, doc string) Verdict {
	proto, err := compile(expr)
	if err != nil {
		return Undetermined
	}
	if !gjson.Valid(doc) {
		return Undetermined
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.closed {
		return Undetermined
	}
	return ev.run(proto, name, ev.fromJSON(gjson.Parse(doc)))
}

// fromJSON converts a parsed JSON value. Callers hold the evaluator lock.
func (ev *Evaluator) fromJSON(res gjson.Result) lua.LValue {
	switch res.Type {
	case gjson.Null:
		return lua.LNil
	case gjson.False:
		return lua.LFalse
	case gjson.True:
		return lua.LTrue
	case gjson.Number:
		return lua.LNumber(res.Num)
	case gjson.String:
		return lua.LString(res.Str)
	default:
		tbl := ev.L.NewTable()
		if res.IsArray() {
			for _, el := range res.Array() {
				tbl.Append(ev.fromJSON(el))
			}
			return tbl
		}
		res.ForEach(func(key, value gjson.Result) bool {
			tbl.RawSetString(key.Str, ev.fromJSON(value))
			return true
		})
		return tbl
	}
}
