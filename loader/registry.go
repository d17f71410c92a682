package loader

import (
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/contentloader/core"
)

// Factory builds an executor for one configured source.
type Factory func(source core.LoaderSource) (Executor, error)

// Registry maps source types to executor factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[core.SourceType]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[core.SourceType]Factory),
	}
}

// Register installs the factory for sourceType, replacing any previous one.
func (r *Registry) Register(sourceType core.SourceType, factory Factory) error {
	if !sourceType.Valid() {
		return fmt.Errorf("%w: %q", core.ErrUnsupportedSourceType, sourceType)
	}
	if factory == nil {
		return ErrNilFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[sourceType] = factory
	return nil
}

// Supports reports whether a factory is registered for sourceType.
func (r *Registry) Supports(sourceType core.SourceType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[sourceType]
	return ok
}

// Types returns the registered source types in sorted order.
func (r *Registry) Types() []core.SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]core.SourceType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Build validates source and constructs its executor. Every failure is a
// *core.ConfigurationError.
func (r *Registry) Build(source core.LoaderSource) (Executor, error) {
	if err := core.ValidateLoaderSource(source); err != nil {
		return nil, err
	}

	r.mu.RLock()
	factory, ok := r.factories[source.SourceType]
	r.mu.RUnlock()
	if !ok {
		return nil, &core.ConfigurationError{
			SourceType: source.SourceType,
			SourceKey:  source.SourceKey,
			Err:        core.ErrUnsupportedSourceType,
		}
	}

	exec, err := factory(source)
	if err == nil && exec == nil {
		err = ErrNilExecutor
	}
	if err != nil {
		return nil, &core.ConfigurationError{
			SourceType: source.SourceType,
			SourceKey:  source.SourceKey,
			Err:        err,
		}
	}
	return exec, nil
}
