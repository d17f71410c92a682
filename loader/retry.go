// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package loader

import (
	"context"
	"iter"
	"log/slog"
	"math"
	"time"

	"github.com/poiesic/contentloader/core"
)

const (
	// DefaultMaxAttempts is the total number of attempts, first try included.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the wait before the first retry.
	DefaultBaseDelay = time.Second

	// MinBaseDelay keeps backoff from collapsing into a hot loop.
	MinBaseDelay = 10 * time.Millisecond
)

// RetryPolicy retries transient failures with exponential backoff.
// The wait before retry n (0-indexed) is baseDelay * 2^n.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	classify    func(error) bool
	onRetry     func(attempt int, delay time.Duration, err error)
	logger      *slog.Logger
}

// RetryOption configures a RetryPolicy.
type RetryOption func(*RetryPolicy)

// WithMaxAttempts sets the total number of attempts.
func WithMaxAttempts(n int) RetryOption {
	return func(p *RetryPolicy) {
		p.maxAttempts = n
	}
}

// WithBaseDelay sets the delay before the first retry. Values below
// MinBaseDelay are raised to it.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(p *RetryPolicy) {
		p.baseDelay = d
	}
}

// WithClassifier replaces core.IsTransient as the retry predicate.
func WithClassifier(fn func(error) bool) RetryOption {
	return func(p *RetryPolicy) {
		if fn != nil {
			p.classify = fn
		}
	}
}

// WithRetryHook registers a callback invoked before each backoff sleep.
func WithRetryHook(fn func(attempt int, delay time.Duration, err error)) RetryOption {
	return func(p *RetryPolicy) {
		p.onRetry = fn
	}
}

// WithRetryLogger sets the logger used for retry diagnostics.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(p *RetryPolicy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewRetryPolicy creates a policy with 3 attempts and a 1s base delay,
// then applies opts.
func NewRetryPolicy(opts ...RetryOption) *RetryPolicy {
	p := &RetryPolicy{
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		classify:    core.IsTransient,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.baseDelay < MinBaseDelay {
		p.baseDelay = MinBaseDelay
	}
	return p
}

// MaxAttempts returns the total attempt budget.
func (p *RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// BaseDelay returns the delay before the first retry.
func (p *RetryPolicy) BaseDelay() time.Duration {
	return p.baseDelay
}

// Delay returns the wait after the given 0-indexed failed attempt. It
// saturates at math.MaxInt64 instead of overflowing.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.baseDelay
	for i := 0; i < attempt; i++ {
		if delay > math.MaxInt64/2 {
			return math.MaxInt64
		}
		delay *= 2
	}
	return delay
}

// RetryStream yields the items of the stream produced by factory, restarting
// it from scratch when it fails with a transient error. Items yielded before
// the failure are yielded again by the restarted stream. Non-transient
// errors, and the last error once attempts are exhausted, are yielded as the
// final element.
func RetryStream[T any](ctx context.Context, p *RetryPolicy, factory func() iter.Seq2[T, error]) iter.Seq2[T, error] {
	if p == nil {
		p = NewRetryPolicy()
	}
	return func(yield func(T, error) bool) {
		var zero T
		if p.maxAttempts <= 0 {
			yield(zero, ErrInvalidMaxAttempts)
			return
		}

		for attempt := 0; attempt < p.maxAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}

			var streamErr error
			for item, err := range factory() {
				if err != nil {
					streamErr = err
					break
				}
				if !yield(item, nil) {
					return
				}
			}

			if streamErr == nil {
				if attempt > 0 {
					p.logger.Debug("stream succeeded after retry", "attempt", attempt+1)
				}
				return
			}

			if !p.classify(streamErr) {
				yield(zero, streamErr)
				return
			}

			if attempt == p.maxAttempts-1 {
				p.logger.Warn("stream failed, retries exhausted",
					"attempts", p.maxAttempts, "err", streamErr)
				yield(zero, streamErr)
				return
			}

			if err := p.backoff(ctx, attempt, streamErr); err != nil {
				yield(zero, err)
				return
			}
		}
	}
}

// Do runs operation, retrying transient failures under the same policy.
// It returns the error from the last attempt if all attempts fail.
func (p *RetryPolicy) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	if p.maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 0 {
				p.logger.Debug("operation succeeded after retry", "attempt", attempt+1)
			}
			return nil
		}

		if !p.classify(lastErr) || attempt == p.maxAttempts-1 {
			return lastErr
		}

		if err := p.backoff(ctx, attempt, lastErr); err != nil {
			return err
		}
	}
	return lastErr
}

// backoff sleeps before the next attempt, waking early if ctx is done.
func (p *RetryPolicy) backoff(ctx context.Context, attempt int, cause error) error {
	delay := p.Delay(attempt)
	p.logger.Debug("transient failure, will retry",
		"attempt", attempt+1, "maxAttempts", p.maxAttempts, "delay", delay, "err", cause)
	if p.onRetry != nil {
		p.onRetry(attempt+1, delay, cause)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
