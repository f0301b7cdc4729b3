package sandbox

import "errors"

// Errors for hosted interpreter operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("sandbox state is closed")

	// ErrExecutorClosed is returned when submitting work to a closed executor.
	ErrExecutorClosed = errors.New("sandbox executor is closed")
)
