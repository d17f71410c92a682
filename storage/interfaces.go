package storage

import (
	"context"

	"github.com/poiesic/contentloader/core"
)

// Point is a vector plus the payload stored next to it.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// PointFromChunk builds the point for an embedded chunk.
func PointFromChunk(chunk *core.ProcessedChunk, vector []float32) Point {
	return Point{
		ID:      chunk.PointID(),
		Vector:  vector,
		Payload: chunk.Payload(),
	}
}

// SearchResult is one similarity match. Score is cosine similarity, higher is
// closer.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// String returns a payload value as a string, or "" if absent or not a string.
func (r SearchResult) String(key string) string {
	s, _ := r.Payload[key].(string)
	return s
}

// Int returns a numeric payload value as an int. Payloads that went through
// JSON or a hash store come back as float64 or string, so both are accepted.
func (r SearchResult) Int(key string) (int, bool) {
	switch v := r.Payload[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// CollectionInfo describes a collection.
type CollectionInfo struct {
	Name      string
	Dimension int
	Points    int
	Distance  string
}

// VectorStore persists points and answers similarity queries over a single
// collection. Implementations must be thread-safe.
type VectorStore interface {
	// EnsureCollection creates the collection if missing. An existing
	// collection with a different dimension is an error.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert writes points, replacing any with the same ID.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to limit points with score >= threshold, ordered by
	// score descending.
	Search(ctx context.Context, vector []float32, limit int, threshold float32) ([]SearchResult, error)

	// CollectionInfo reports the collection's dimension and size.
	CollectionInfo(ctx context.Context) (CollectionInfo, error)

	// Close releases the store's resources.
	Close() error
}

// KV is a minimal byte key/value store.
type KV interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
}
