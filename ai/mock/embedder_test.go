package mock

import (
	"context"
	"math"
	"testing"

	"github.com/poiesic/contentloader/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ai.Embedder = (*MockEmbedder)(nil)

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	a, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	c, err := m.EmbedText(ctx, "goodbye")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, DefaultDimension)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
}

func TestMockEmbedder_Counts(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedderWithDimension(8)

	vecs, err := m.EmbedTexts(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 8)

	_, _ = m.EmbedText(ctx, "d")
	dim, err := m.Dimension(ctx)
	require.NoError(t, err)

	assert.Equal(t, 8, dim)
	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, 4, m.TextCount())

	m.Reset()
	assert.Zero(t, m.CallCount())
	assert.Zero(t, m.TextCount())
}
