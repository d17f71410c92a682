package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/contentloader/config"
	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/loader"
	"github.com/poiesic/contentloader/metrics"
)

// DefaultProgressInterval is how many documents RunSingle streams between
// progress logs.
const DefaultProgressInterval = 100

type entry struct {
	source core.LoaderSource
	exec   loader.Executor
}

// Orchestrator owns the executors built from the configured sources.
// It is safe for concurrent use.
type Orchestrator struct {
	settings         config.Settings
	sources          []core.LoaderSource
	registry         *loader.Registry
	executors        map[string]entry
	retry            *loader.RetryPolicy
	metrics          *metrics.Recorder
	progressInterval int
	pool             *ants.Pool
	logger           *slog.Logger

	mu    sync.Mutex
	stats map[string]ExecutionStats
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithRegistry sets the registry used to build executors.
// Default is an empty registry, which supports no source types.
func WithRegistry(registry *loader.Registry) Option {
	return func(o *Orchestrator) error {
		if registry == nil {
			return ErrRegistryRequired
		}
		o.registry = registry
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithRetryPolicy sets the policy wrapped around every executor stream.
// Default is built from the retry section of the settings.
func WithRetryPolicy(policy *loader.RetryPolicy) Option {
	return func(o *Orchestrator) error {
		o.retry = policy
		return nil
	}
}

// WithMetrics records runs and retries.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) error {
		o.metrics = m
		return nil
	}
}

// WithProgressInterval sets how many documents RunSingle streams between
// progress logs. Values <= 0 disable progress logs.
func WithProgressInterval(n int) Option {
	return func(o *Orchestrator) error {
		o.progressInterval = n
		return nil
	}
}

// New builds an executor for every enabled source. When sources is nil the
// sources of settings are used. A source that cannot be built fails
// construction with a *core.ConfigurationError.
func New(settings config.Settings, sources []core.LoaderSource, opts ...Option) (*Orchestrator, error) {
	settings.ApplyDefaults()
	if sources == nil {
		sources = settings.Sources
	}

	o := &Orchestrator{
		settings:         settings,
		sources:          slices.Clone(sources),
		registry:         loader.NewRegistry(),
		executors:        make(map[string]entry),
		progressInterval: settings.Execution.ProgressInterval,
		logger:           slog.Default(),
		stats:            make(map[string]ExecutionStats),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "orchestrator")

	if o.retry == nil {
		o.retry = loader.NewRetryPolicy(
			loader.WithMaxAttempts(settings.Retry.MaxAttempts),
			loader.WithBaseDelay(settings.Retry.BaseDelay),
			loader.WithRetryLogger(o.logger),
			loader.WithRetryHook(func(int, time.Duration, error) {
				o.metrics.Retry("executor")
			}),
		)
	}

	for _, src := range o.sources {
		if !src.Enabled {
			continue
		}
		key := src.Key()
		if _, dup := o.executors[key]; dup {
			o.closeExecutors()
			return nil, &core.ConfigurationError{
				SourceType: src.SourceType,
				SourceKey:  src.SourceKey,
				Err:        fmt.Errorf("%w: duplicate source", core.ErrInvalidLoaderSource),
			}
		}
		exec, err := o.registry.Build(src)
		if err != nil {
			o.logger.Error("failed to initialize executor", "executor", key, "err", err)
			o.closeExecutors()
			return nil, err
		}
		o.executors[key] = entry{source: src, exec: exec}
		o.logger.Info("initialized executor", "executor", key)
	}

	pool, err := ants.NewPool(settings.Execution.MaxConcurrent)
	if err != nil {
		o.closeExecutors()
		return nil, err
	}
	o.pool = pool

	return o, nil
}

// RunSingle streams the documents of one executor through the retry policy.
//
// An unknown executor yields a *core.ConfigurationError wrapping
// core.ErrExecutorNotFound. A failed run yields a *core.LoaderExecutionError
// as its final element. Stats are recorded when the stream ends, fails or is
// abandoned by the caller, unless ctx was canceled.
func (o *Orchestrator) RunSingle(ctx context.Context, sourceType core.SourceType, sourceKey string, dr core.DateRange) iter.Seq2[*core.Document, error] {
	key := core.ExecutorKey(sourceType, sourceKey)

	return func(yield func(*core.Document, error) bool) {
		e, ok := o.executors[key]
		if !ok {
			yield(nil, &core.ConfigurationError{
				SourceType: sourceType,
				SourceKey:  sourceKey,
				Err:        core.ErrExecutorNotFound,
			})
			return
		}

		logger := o.logger.With("executor", key)
		logger.Info("starting execution")

		start := time.Now()
		processed, failures := 0, 0
		var runErr error
		defer func() {
			if r := recover(); r != nil {
				failures++
				runErr = fmt.Errorf("%w: %s: %v", ErrPanic, key, r)
				logger.Error("executor panicked", "documents_processed", processed, "panic", r)
				o.record(ctx, key, e.source.SourceType, start, processed, failures, runErr)
				panic(r)
			}
			o.record(ctx, key, e.source.SourceType, start, processed, failures, runErr)
		}()

		progress := loader.NewProgressTracker(logger, o.progressInterval)
		progress.Start()

		for doc, err := range loader.Execute(ctx, e.exec, dr, o.retry) {
			if err != nil {
				failures++
				runErr = err
				logger.Error("executor failed",
					"context", core.ErrorContext("run_single", err, map[string]any{
						"executor":            key,
						"documents_processed": processed,
					}))
				yield(nil, &core.LoaderExecutionError{
					LoaderType:         sourceType,
					SourceKey:          sourceKey,
					ErrorKind:          core.Kind(err),
					DocumentsProcessed: processed,
					Err:                err,
				})
				return
			}

			processed++
			progress.Increment(1)
			if !yield(doc, nil) {
				return
			}
		}

		elapsed := progress.Finish()
		logger.Info("completed execution", "documents", processed, "elapsed", elapsed.Round(time.Millisecond))
	}
}

// record commits the stats of a finished run. Canceled runs are dropped.
func (o *Orchestrator) record(ctx context.Context, key string, sourceType core.SourceType, start time.Time, processed, failures int, runErr error) {
	elapsed := time.Since(start)

	if ctx.Err() != nil || errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		o.metrics.ObserveRun(string(sourceType), metrics.OutcomeCanceled, processed, elapsed)
		o.logger.Debug("run canceled, stats not recorded", "executor", key)
		return
	}

	outcome := metrics.OutcomeSuccess
	if failures > 0 {
		outcome = metrics.OutcomeFailure
	}
	o.metrics.ObserveRun(string(sourceType), outcome, processed, elapsed)

	o.mu.Lock()
	o.stats[key] = ExecutionStats{
		StartTime:          start,
		Elapsed:            elapsed,
		DocumentsProcessed: processed,
		Errors:             failures,
	}
	o.mu.Unlock()
}

// collect drains RunSingle for key into a slice. A panic in the executor is
// returned as an error wrapping ErrPanic.
func (o *Orchestrator) collect(ctx context.Context, key string, dr core.DateRange) (docs []*core.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrPanic, key, r)
		}
	}()

	sourceType, sourceKey, _ := strings.Cut(key, ":")
	for doc, runErr := range o.RunSingle(ctx, core.SourceType(sourceType), sourceKey, dr) {
		if runErr != nil {
			return nil, runErr
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// RunAll runs every executor concurrently, at most maxConcurrent at a time.
// A value <= 0 uses the configured execution.max_concurrent.
//
// Each key maps to the documents its executor produced; a failed executor
// maps to an empty list. If every executor failed, a
// *core.ConcurrentExecutionError is returned. If ctx is canceled, ctx.Err()
// is returned with no results.
func (o *Orchestrator) RunAll(ctx context.Context, dr core.DateRange, maxConcurrent int) (map[string][]*core.Document, error) {
	results := make(map[string][]*core.Document)
	if len(o.executors) == 0 {
		o.logger.Warn("no executors configured")
		return results, nil
	}

	pool := o.pool
	if maxConcurrent > 0 && maxConcurrent != pool.Cap() {
		p, err := ants.NewPool(maxConcurrent)
		if err != nil {
			return nil, err
		}
		defer p.Release()
		pool = p
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed = make(map[string]error)
	)
	for _, key := range o.EnabledKeys() {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			docs, err := o.collect(ctx, key, dr)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.logger.Error("loader failed", "executor", key, "err", err)
				failed[key] = err
				results[key] = []*core.Document{}
				return
			}
			if docs == nil {
				docs = []*core.Document{}
			}
			results[key] = docs
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			failed[key] = err
			results[key] = []*core.Document{}
			mu.Unlock()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(failed) > 0 {
		keys := slices.Sorted(maps.Keys(failed))
		o.logger.Warn("some loaders failed", "failed", keys)
		if len(failed) == len(o.executors) {
			return nil, &core.ConcurrentExecutionError{FailedKeys: keys, Errs: failed}
		}
	}

	total := 0
	for _, docs := range results {
		total += len(docs)
	}
	o.logger.Info("all loaders completed", "documents", total, "sources", len(results))
	return results, nil
}

// RunByType runs the executors of sourceType one after another in key
// order. A failed executor maps to an empty list.
func (o *Orchestrator) RunByType(ctx context.Context, sourceType core.SourceType, dr core.DateRange) (map[string][]*core.Document, error) {
	results := make(map[string][]*core.Document)

	prefix := string(sourceType) + ":"
	for _, key := range o.EnabledKeys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		docs, err := o.collect(ctx, key, dr)
		if err != nil {
			o.logger.Error("loader failed", "executor", key, "err", err)
			docs = []*core.Document{}
		}
		if docs == nil {
			docs = []*core.Document{}
		}
		results[key] = docs
	}

	if len(results) == 0 {
		o.logger.Warn("no executors found for type", "type", sourceType)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ListSources returns every configured source, disabled ones included.
func (o *Orchestrator) ListSources() []core.LoaderSource {
	return slices.Clone(o.sources)
}

// EnabledKeys returns the keys of the built executors, sorted.
func (o *Orchestrator) EnabledKeys() []string {
	return slices.Sorted(maps.Keys(o.executors))
}

// Close releases the worker pool and closes executors that implement io.Closer.
func (o *Orchestrator) Close() error {
	o.pool.Release()
	return o.closeExecutors()
}

func (o *Orchestrator) closeExecutors() error {
	var errs []error
	for _, key := range o.EnabledKeys() {
		if closer, ok := o.executors[key].exec.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}
	return errors.Join(errs...)
}
