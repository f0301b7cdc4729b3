// Package gate installs a capability firewall over the module-loading
// machinery of a hosted interpreter state. An analysis engine activates the
// gate, runs untrusted candidate functions any number of times, and releases
// it; while active, hosted code can load pure-computation modules and
// host-preloaded modules, and nothing else.
//
// # Enforcement layers
//
// The gate enforces policy at two independent layers:
//
//   - The primary entry point: the state's global require function is
//     swapped for an interception hook that checks every request against
//     [capability.Registry] before delegating to the original, snapshotted
//     entry point.
//
//   - The resolver chain: an [Adapter] sits at the front of the loader
//     chain and claims every denied module; executing one fails. This layer
//     triggers even when resolution is driven without going through the
//     replaced entry point.
//
// Install additionally evicts denied modules from the module cache, clears
// their global bindings, and removes the dynamic code-execution functions
// (load, dofile and friends); Uninstall restores all of it exactly.
//
// # Lifecycle
//
// Activation is reference-counted. Overlapping activations from any number
// of goroutines share one real install:
//
//	g := gate.New(st)
//	if err := g.Install(); err != nil {
//	    return err
//	}
//	defer g.Uninstall()
//	// ... run candidate functions ...
//
// or, scoped:
//
//	err := g.With(func() error {
//	    return st.DoString(candidate)
//	})
//
// Uninstall without a matching Install is tolerated as a no-op so error
// paths can release defensively.
//
// # Denials
//
// A refused load surfaces to hosted code as an ordinary "module not found"
// failure. Go callers receive a [DeniedError] carrying the fully-qualified
// name; match it with errors.Is against [ErrDenied].
package gate
