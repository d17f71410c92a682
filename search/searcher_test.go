package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/contentloader/ai/mock"
	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/storage"
	"github.com/poiesic/contentloader/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupIndex(t *testing.T, embedder *mock.MockEmbedder, texts ...string) *badger.VectorStore {
	t.Helper()
	ctx := context.Background()

	store, err := badger.NewMemoryVectorStore("search-test")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dim, err := embedder.Dimension(ctx)
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(ctx, dim))

	meta := core.DocumentMetadata{SourceType: core.SourceSlack, SourceID: "doc"}
	vectors, err := embedder.EmbedTexts(ctx, texts)
	require.NoError(t, err)

	points := make([]storage.Point, len(texts))
	for i, text := range texts {
		chunk := core.NewChunk("doc_chunk_"+string(rune('a'+i)), text, core.ChunkOriginal, i, "doc", meta)
		points[i] = storage.PointFromChunk(chunk, vectors[i])
	}
	require.NoError(t, store.Upsert(ctx, points))
	embedder.Reset()
	return store
}

func TestNewSearcher(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	store := setupIndex(t, embedder)

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(embedder, store)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(embedder, store, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(nil, store)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewSearcher(embedder, nil)
		assert.Equal(t, ErrStoreRequired, err)
	})
}

func TestFindSimilar(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimension(16)
	store := setupIndex(t, embedder,
		"the deploy pipeline failed on staging",
		"lunch menu for friday",
		"rollback procedure for the deploy pipeline",
	)
	searcher, err := NewSearcher(embedder, store, WithLogger(slog.Default()))
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "lunch menu for friday", 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, "lunch menu for friday", top.String("text"))
	assert.InDelta(t, 1.0, top.Score, 1e-4)
	assert.True(t, top.Verbatim)
	for i, r := range results {
		assert.GreaterOrEqual(t, r.Score, MinScore)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score)
		}
	}
	assert.Equal(t, 1, embedder.CallCount())
}

func TestFindSimilar_Limit(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimension(8)
	store := setupIndex(t, embedder, "one", "two", "three", "four")
	searcher, err := NewSearcher(embedder, store)
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "one", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestFindSimilar_Errors(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimension(8)
	store := setupIndex(t, embedder, "text")
	searcher, err := NewSearcher(embedder, store)
	require.NoError(t, err)

	_, err = searcher.FindSimilar(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("model offline")
	}
	_, err = searcher.FindSimilar(context.Background(), "text", 5)
	assert.ErrorIs(t, err, core.ErrEmbedding)
}

type recordingMonitor struct {
	stages   []string
	verbatim int
}

func (m *recordingMonitor) Start(string)       { m.stages = append(m.stages, "start") }
func (m *recordingMonitor) AfterEmbedding(int) { m.stages = append(m.stages, "embedding") }
func (m *recordingMonitor) VerbatimHit(Result) { m.verbatim++ }
func (m *recordingMonitor) Finish([]Result)    { m.stages = append(m.stages, "finish") }
func (m *recordingMonitor) AfterVectorSearch(_ []storage.SearchResult) {
	m.stages = append(m.stages, "vector")
}

func TestFindSimilarWithMonitor(t *testing.T) {
	embedder := mock.NewMockEmbedderWithDimension(8)
	store := setupIndex(t, embedder, "release notes draft")
	searcher, err := NewSearcher(embedder, store)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	_, err = searcher.FindSimilarWithMonitor(context.Background(), "release notes draft", 3, monitor)
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "embedding", "vector", "finish"}, monitor.stages)
	assert.Equal(t, 1, monitor.verbatim)
}
