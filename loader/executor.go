package loader

import (
	"context"
	"iter"

	"github.com/poiesic/contentloader/core"
)

// Executor streams documents from one configured data source.
//
// Fetch returns a finite, lazy sequence. Source-specific faults are reported
// as *core.DataSourceError; network faults as transient errors (see
// core.IsTransient). Each call starts a fresh sequence from the beginning of
// the source. Implementations stop yielding once ctx is done.
type Executor interface {
	Fetch(ctx context.Context, dr core.DateRange) iter.Seq2[*core.Document, error]
}

// Pinger is implemented by executors that can check their own connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, dr core.DateRange) iter.Seq2[*core.Document, error]

// Fetch calls f.
func (f ExecutorFunc) Fetch(ctx context.Context, dr core.DateRange) iter.Seq2[*core.Document, error] {
	return f(ctx, dr)
}

// Execute runs exec's stream through the retry policy. The zero DateRange is
// the unbounded default. Documents are relayed unfiltered; callers that want
// date filtering apply ShouldProcess themselves.
func Execute(ctx context.Context, exec Executor, dr core.DateRange, policy *RetryPolicy) iter.Seq2[*core.Document, error] {
	return RetryStream(ctx, policy, func() iter.Seq2[*core.Document, error] {
		return exec.Fetch(ctx, dr)
	})
}

// ShouldProcess reports whether doc falls inside dr. Documents without any
// timestamp always pass.
func ShouldProcess(doc *core.Document, dr core.DateRange) bool {
	if doc == nil {
		return false
	}
	ts := doc.Timestamp()
	if ts.IsZero() {
		return true
	}
	return dr.Includes(ts)
}

// Filter wraps seq, dropping documents outside dr. Errors pass through.
func Filter(seq iter.Seq2[*core.Document, error], dr core.DateRange) iter.Seq2[*core.Document, error] {
	return func(yield func(*core.Document, error) bool) {
		for doc, err := range seq {
			if err == nil && !ShouldProcess(doc, dr) {
				continue
			}
			if !yield(doc, err) {
				return
			}
		}
	}
}
