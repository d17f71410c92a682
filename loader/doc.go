// Package loader defines the streaming contract every source executor
// satisfies, and the pieces wrapped around it: the retry policy, the bounded
// batcher, the factory registry and progress reporting.
//
// An executor exposes a single operation, Fetch, returning a lazy
// iter.Seq2[*core.Document, error]. The sequence is finite and cancellable
// through its context. It is not resumable mid-stream: every call starts over
// from the beginning of the source, which is what lets the retry policy
// restart a failed stream.
//
// # Retries and duplicates
//
// RetryStream restarts the whole stream after a transient failure, so a
// consumer can see the same document more than once. Downstream stages rely
// on content hashes and deterministic chunk point ids to stay idempotent.
//
//	policy := loader.NewRetryPolicy(loader.WithMaxAttempts(3))
//	for doc, err := range loader.Execute(ctx, exec, core.DateRange{}, policy) {
//	    if err != nil {
//	        return err
//	    }
//	    if !loader.ShouldProcess(doc, window) {
//	        continue
//	    }
//	    ...
//	}
package loader
