// Package analysis provides a unified facade over the toolgate packages.
//
// A [Session] combines the hosted interpreter (package sandbox), the import
// gate (package gate), and the guard evaluator (package guard) into the
// workflow an analysis engine runs candidate functions through:
//
//   - Load candidate source in the trusted setup phase
//   - Call candidate functions with the gate installed
//   - Check guard expressions over the results
//   - Collect the verdicts into a report
//
// # Basic usage
//
//	session, err := analysis.New(analysis.Options{})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	if err := session.Load(ctx, `function double(n) return n * 2 end`); err != nil {
//	    return err
//	}
//
//	result := session.Call(ctx, "double", lua.LNumber(21))
//	if !result.OK() {
//	    return result.Error
//	}
//
//	verdict := session.CheckGuard("positive", "x > 0", 42)
//
// Candidate runs always happen behind the gate: a candidate that tries to
// require io, open a socket, or reach the loading machinery fails with the
// same error an absent module produces. Guard expressions run in a separate
// minimal interpreter and yield a tri-state verdict; anything that goes
// wrong during evaluation reads as undetermined rather than as an error.
package analysis
