package guard

// Verdict is the tri-state outcome of evaluating a guard expression.
// Undetermined is the zero value, so an uninitialized verdict defaults to
// the safest reading: the guard is not known to hold.
type Verdict int

const (
	// Undetermined means the expression could not be compiled or failed at
	// evaluation time. Callers treat it as "condition not satisfied"; it is
	// a result, never an error.
	Undetermined Verdict = iota

	// NotSatisfied means the expression evaluated to a false value.
	NotSatisfied

	// Satisfied means the expression evaluated to a true value.
	Satisfied
)

// String returns the string representation of a Verdict.
func (v Verdict) String() string {
	switch v {
	case Satisfied:
		return "satisfied"
	case NotSatisfied:
		return "not_satisfied"
	default:
		return "undetermined"
	}
}
