package orchestrator

import "errors"

var (
	// ErrRegistryRequired is returned when WithRegistry is given a nil registry.
	ErrRegistryRequired = errors.New("registry is required")

	// ErrPanic wraps a panic recovered from an executor run.
	ErrPanic = errors.New("executor panicked")
)
