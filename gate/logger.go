package gate

// Logger is an optional interface for observability during gate lifecycle
// transitions. Interception itself is never logged; it runs on the hosted
// code's hot path.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort; Logf should not panic.
// - Ownership: format/args are read-only.
type Logger interface {
	// Logf logs a formatted message.
	Logf(format string, args ...any)
}

// logf logs through g's logger when one is configured.
func (g *Gate) logf(format string, args ...any) {
	if g.log != nil {
		g.log.Logf(format, args...)
	}
}
