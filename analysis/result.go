package analysis

import (
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Result represents the outcome of one candidate run.
type Result struct {
	// Values are the return values of the candidate, in order.
	// Empty for source runs that return nothing.
	Values []lua.LValue

	// Duration is how long the run took inside the interpreter.
	Duration time.Duration

	// Error is non-nil if the candidate failed: a denied load, a raised
	// interpreter error, or an exceeded execution timeout.
	Error error
}

// OK returns true if the run completed without an error.
func (r Result) OK() bool {
	return r.Error == nil
}
