package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, dim int) *VectorStore {
	t.Helper()
	store, err := NewMemoryVectorStore("test")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureCollection(context.Background(), dim))
	return store
}

func TestEnsureCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 3)

	// Same dimension is a no-op.
	require.NoError(t, store.EnsureCollection(ctx, 3))

	err := store.EnsureCollection(ctx, 4)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	assert.ErrorIs(t, err, core.ErrVectorStore)

	assert.ErrorIs(t, store.EnsureCollection(ctx, 0), storage.ErrInvalidQuery)
}

func TestEnsureCollection_Persists(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, NewVectorStore(backend, "docs").EnsureCollection(ctx, 2))

	// A fresh handle on the same backend sees the collection.
	info, err := NewVectorStore(backend, "docs").CollectionInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Dimension)
	assert.Equal(t, "cosine", info.Distance)

	_, err = NewVectorStore(backend, "other").CollectionInfo(ctx)
	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
}

func TestUpsert_RequiresCollection(t *testing.T) {
	store, err := NewMemoryVectorStore("missing")
	require.NoError(t, err)
	defer store.Close()

	err = store.Upsert(context.Background(), []storage.Point{{ID: "a", Vector: []float32{1}}})
	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
}

func TestUpsert_Validation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	assert.NoError(t, store.Upsert(ctx, nil))
	assert.ErrorIs(t, store.Upsert(ctx, []storage.Point{{ID: "a", Vector: []float32{1, 2, 3}}}), storage.ErrDimensionMismatch)
	assert.ErrorIs(t, store.Upsert(ctx, []storage.Point{{Vector: []float32{1, 2}}}), storage.ErrInvalidQuery)
}

func TestUpsert_OverwritesSameID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	require.NoError(t, store.Upsert(ctx, []storage.Point{{ID: "a", Vector: []float32{1, 0}, Payload: map[string]any{"v": "one"}}}))
	require.NoError(t, store.Upsert(ctx, []storage.Point{{ID: "a", Vector: []float32{0, 1}, Payload: map[string]any{"v": "two"}}}))

	info, err := store.CollectionInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Points)

	results, err := store.Search(ctx, []float32{0, 1}, 5, 0.9)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "two", results[0].String("v"))
}

func TestSearch_SortedAndThresholded(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 3)

	points := []storage.Point{
		{ID: "exact", Vector: []float32{2, 0, 0}},      // similarity 1.0 after normalization
		{ID: "close", Vector: []float32{1, 0.2, 0}},    // ~0.98
		{ID: "partial", Vector: []float32{1, 1, 0}},    // ~0.71
		{ID: "orthogonal", Vector: []float32{0, 1, 0}}, // 0
		{ID: "opposite", Vector: []float32{-1, 0, 0}},  // -1
	}
	require.NoError(t, store.Upsert(ctx, points))

	results, err := store.Search(ctx, []float32{1, 0, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 3)

	ids := []string{results[0].ID, results[1].ID, results[2].ID}
	assert.Equal(t, []string{"exact", "close", "partial"}, ids)
	for i, r := range results {
		assert.GreaterOrEqual(t, r.Score, float32(0.5))
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score)
		}
	}
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)

	limited, err := store.Search(ctx, []float32{1, 0, 0}, 2, 0.5)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSearch_Validation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	_, err := store.Search(ctx, []float32{1, 0}, 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = store.Search(ctx, []float32{1, 0, 0}, 1, 0)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	results, err := store.Search(ctx, []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_ChunkPayload(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	meta := core.DocumentMetadata{
		SourceType: core.SourceGitHub,
		SourceID:   "issue-7",
		UpdatedAt:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Details:    core.GitHubIssue{Repository: "acme/app", IssueNumber: 7, State: "open"},
	}
	chunk := core.NewChunk("issue-7_chunk_2", "crash on start", core.ChunkOriginal, 2, "issue-7", meta)
	require.NoError(t, store.Upsert(ctx, []storage.Point{storage.PointFromChunk(chunk, []float32{0.3, 0.4})}))

	results, err := store.Search(ctx, []float32{3, 4}, 1, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, chunk.PointID(), r.ID)
	assert.Equal(t, "crash on start", r.String("text"))
	assert.Equal(t, "issue-7", r.String("document_id"))
	assert.Equal(t, "acme/app", r.String("repository"))
	idx, ok := r.Int("chunk_index")
	require.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestSearch_ManyPoints(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	points := make([]storage.Point, 600)
	for i := range points {
		points[i] = storage.Point{ID: fmt.Sprintf("p%03d", i), Vector: []float32{1, float32(i) / 600}}
	}
	require.NoError(t, store.Upsert(ctx, points))

	info, err := store.CollectionInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 600, info.Points)

	results, err := store.Search(ctx, []float32{1, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 10)
	assert.Equal(t, "p000", results[0].ID)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.Search(canceled, []float32{1, 0}, 10, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClose_OwnedBackendOnly(t *testing.T) {
	backend, err := OpenMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, NewVectorStore(backend, "shared").Close())
	assert.False(t, backend.IsClosed(), "a borrowed backend stays open")

	owned, err := NewMemoryVectorStore("owned")
	require.NoError(t, err)
	require.NoError(t, owned.Close())
	assert.True(t, owned.Backend().IsClosed())
}
