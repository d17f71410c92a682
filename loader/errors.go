package loader

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when a retry policy allows no attempts.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrNilFactory is returned when registering a nil executor factory.
	ErrNilFactory = errors.New("executor factory cannot be nil")

	// ErrNilExecutor is returned when a factory produces no executor.
	ErrNilExecutor = errors.New("factory returned a nil executor")
)
