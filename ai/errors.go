package ai

import "errors"

var (
	// ErrEmptyEmbedding is returned when the model produces no vector for an input.
	ErrEmptyEmbedding = errors.New("embedder returned an empty vector")

	// ErrEmbeddingCount is returned when a batch call yields a different number
	// of vectors than texts.
	ErrEmbeddingCount = errors.New("embedding count does not match input count")

	// ErrEmbedderRequired is returned when a decorator is built without an inner embedder.
	ErrEmbedderRequired = errors.New("embedder is required")
)
