package openai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/contentloader/ai"
	"github.com/poiesic/contentloader/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// probeText is embedded once to discover the model's vector length.
const probeText = "dimension probe"

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// The underlying client is created on first use and dropped by Close; a
// closed Embedder reconnects when used again.
type Embedder struct {
	config    *ai.Config
	newClient func() (embeddings.Embedder, error)
	logger    *slog.Logger

	mu        sync.Mutex
	client    embeddings.Embedder
	dimension int
}

// newEmbedder is an internal constructor that returns the concrete type.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Embedder{
		config: config,
		logger: slog.Default().With("component", "openai-embedder", "model", config.EmbeddingModel),
	}
	e.newClient = func() (embeddings.Embedder, error) {
		client, err := openai.New(
			openai.WithBaseURL(config.EmbeddingHost),
			openai.WithToken(config.Token),
			openai.WithEmbeddingModel(config.EmbeddingModel),
		)
		if err != nil {
			return nil, err
		}
		return embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	}
	return e, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction. The concrete value
// also implements io.Closer.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// load returns the client, creating it on first use.
func (e *Embedder) load() (embeddings.Embedder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		return e.client, nil
	}
	e.logger.Info("loading embedding client", "host", e.config.EmbeddingHost)
	client, err := e.newClient()
	if err != nil {
		return nil, fmt.Errorf("%w: create client: %w", core.ErrEmbedding, err)
	}
	e.client = client
	return client, nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, ai.ErrEmptyEmbedding)
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	client, err := e.load()
	if err != nil {
		return nil, err
	}

	e.logger.Debug("generating embeddings for texts", "count", len(texts))
	vectors, err := client.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %w: got %d for %d texts",
			core.ErrEmbedding, ai.ErrEmbeddingCount, len(vectors), len(texts))
	}
	return vectors, nil
}

// Dimension returns the configured dimension, or probes the model once and
// caches the answer. A model that returns an empty probe vector is assumed
// to produce ai.DefaultDimension.
func (e *Embedder) Dimension(ctx context.Context) (int, error) {
	if e.config.Dimensions > 0 {
		return e.config.Dimensions, nil
	}

	e.mu.Lock()
	dim := e.dimension
	e.mu.Unlock()
	if dim > 0 {
		return dim, nil
	}

	client, err := e.load()
	if err != nil {
		return 0, err
	}
	vectors, err := client.EmbedDocuments(ctx, []string{probeText})
	if err != nil {
		return 0, fmt.Errorf("%w: probe dimension: %w", core.ErrEmbedding, err)
	}

	dim = ai.DefaultDimension
	if len(vectors) > 0 && len(vectors[0]) > 0 {
		dim = len(vectors[0])
	} else {
		e.logger.Warn("model did not report a dimension, using default", "dimension", dim)
	}

	e.mu.Lock()
	e.dimension = dim
	e.mu.Unlock()
	e.logger.Debug("probed embedding dimension", "dimension", dim)
	return dim, nil
}

// Close releases the client. The next call creates a new one.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Debug("closing embedder")
	e.client = nil
	e.dimension = 0
	return nil
}
