// Package cache provides an ai.Embedder decorator that remembers vectors in a
// key-value store, so re-delivered documents are not embedded twice.
package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/minio/highwayhash"
	"github.com/poiesic/contentloader/ai"
	"github.com/poiesic/contentloader/metrics"
	"github.com/poiesic/contentloader/storage"
)

// defaultHashKey is the highwayhash key used when none is configured.
// Changing it invalidates every cached vector.
var defaultHashKey = []byte("contentloader-embedding-cache-k1")

// Embedder caches the vectors of an inner embedder keyed by model and text.
type Embedder struct {
	inner   ai.Embedder
	store   storage.KV
	model   string
	hashKey []byte
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithModel scopes cache keys to a model so vectors of different models never mix.
func WithModel(model string) Option {
	return func(e *Embedder) {
		e.model = model
	}
}

// WithHashKey sets the 32-byte highwayhash key.
func WithHashKey(key []byte) Option {
	return func(e *Embedder) {
		e.hashKey = key
	}
}

// WithMetrics records hits and misses.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Embedder) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New wraps inner with a cache backed by store.
func New(inner ai.Embedder, store storage.KV, opts ...Option) (ai.Embedder, error) {
	if inner == nil {
		return nil, ai.ErrEmbedderRequired
	}
	if store == nil {
		return nil, errors.New("cache: store is required")
	}
	e := &Embedder{
		inner:   inner,
		store:   store,
		hashKey: defaultHashKey,
		logger:  slog.Default().With("component", "embedding-cache"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if len(e.hashKey) != 32 {
		return nil, fmt.Errorf("cache: hash key must be 32 bytes, got %d", len(e.hashKey))
	}
	return e, nil
}

// EmbedText returns the cached vector or embeds and stores it.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts serves hits from the store and sends only the misses to the
// inner embedder, in a single batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	keys := make([][]byte, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key, err := e.key(text)
		if err != nil {
			return nil, err
		}
		keys[i] = key

		if vec, ok := e.lookup(ctx, key); ok {
			e.metrics.CacheLookup(true)
			out[i] = vec
			continue
		}
		e.metrics.CacheLookup(false)
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := e.inner.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d for %d texts", ai.ErrEmbeddingCount, len(vectors), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = vectors[j]
		if err := e.store.Set(ctx, keys[i], encodeVector(vectors[j])); err != nil {
			e.logger.Warn("failed to cache embedding", "err", err)
		}
	}
	e.logger.Debug("embedded texts", "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	return out, nil
}

// Dimension delegates to the inner embedder.
func (e *Embedder) Dimension(ctx context.Context) (int, error) {
	return e.inner.Dimension(ctx)
}

// Close closes the inner embedder if it holds resources. The store is owned
// by the caller.
func (e *Embedder) Close() error {
	if c, ok := e.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (e *Embedder) key(text string) ([]byte, error) {
	h, err := highwayhash.New64(e.hashKey)
	if err != nil {
		return nil, err
	}
	h.Write([]byte(e.model))
	h.Write([]byte{0})
	h.Write([]byte(text))

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, h.Sum64())
	return key, nil
}

func (e *Embedder) lookup(ctx context.Context, key []byte) ([]float32, bool) {
	data, err := e.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn("failed to read cached embedding", "err", err)
		}
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil {
		e.logger.Warn("discarding unreadable cached embedding", "err", err)
		return nil, false
	}
	return vec, true
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
