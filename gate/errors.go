package gate

import (
	"errors"
	"fmt"
)

// Sentinel errors for error classification.
var (
	// ErrDenied indicates a module load was refused by capability policy.
	ErrDenied = errors.New("module denied")

	// ErrNotInstalled indicates an operation that needs an installed gate
	// was attempted while the gate was idle.
	ErrNotInstalled = errors.New("gate not installed")

	// ErrNoLoadingMachinery indicates the hosted state has no require
	// function or package table to hook.
	ErrNoLoadingMachinery = errors.New("state has no loading machinery")
)

// DeniedError reports a refused module load. It carries the fully-qualified
// name that was requested. Its message reads as an ordinary load failure;
// hosted code learns nothing about why the module is unavailable.
type DeniedError struct {
	// Name is the fully-qualified module name that was refused.
	Name string
}

// Error returns the error message.
func (e *DeniedError) Error() string {
	return fmt.Sprintf("module %q is not importable", e.Name)
}

// Is reports whether this error matches the target.
// DeniedError matches ErrDenied to allow sentinel-style error checking.
func (e *DeniedError) Is(target error) bool {
	return target == ErrDenied
}
