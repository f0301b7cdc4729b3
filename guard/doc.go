// Package guard evaluates boolean and arithmetic guard expressions against
// one bound value under a minimal capability set.
//
// A guard is a single expression like "x > 0" or "#x <= 16". The evaluator
// compiles it with a restriction-validating compiler that rejects
// statements, assignments, function literals, reserved identifiers
// (require, load, the raw-access family) and double-underscore attribute
// access, then runs it in a private interpreter carrying only math, string,
// table and a handful of pure base functions. No loading machinery, no
// dynamic execution, no file access, no metatable introspection.
//
// # Verdicts
//
// Evaluation is total. An expression that fails to compile, fails at
// runtime (unbound name, type mismatch), or produces a non-finite number
// yields [Undetermined], a result rather than an error. Callers treat
// Undetermined as "condition not satisfied":
//
//	ev := guard.NewEvaluator()
//	defer ev.Close()
//
//	ev.EvaluateGo("x > 0", "x", 5)    // guard.Satisfied
//	ev.EvaluateGo("x > 0", "x", -5)   // guard.NotSatisfied
//	ev.EvaluateGo("x / 0", "x", 1)    // guard.Undetermined
//	ev.EvaluateGo(`require("io")`, "x", 0) // guard.Undetermined
//
// # Defense in depth
//
// The evaluator is meant to run while a gate (package gate) is installed on
// the hosting state. The restriction compiler is the first line; anything
// that slips past it and reaches for a module still hits the import
// firewall.
package guard
