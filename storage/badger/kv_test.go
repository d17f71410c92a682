package badger

import (
	"context"
	"testing"

	"github.com/poiesic/contentloader/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKV_GetSet(t *testing.T) {
	backend, err := OpenMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	kv := NewKV(backend, "emb", 0)

	_, err = kv.Get(ctx, []byte("missing"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, kv.Set(ctx, []byte("k"), []byte("v1")))
	require.NoError(t, kv.Set(ctx, []byte("k"), []byte("v2")))

	got, err := kv.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestKV_NamespacesAreIsolated(t *testing.T) {
	backend, err := OpenMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	a := NewKV(backend, "a", 0)
	b := NewKV(backend, "b", 0)

	require.NoError(t, a.Set(ctx, []byte("k"), []byte("from a")))
	_, err = b.Get(ctx, []byte("k"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKV_CanceledSet(t *testing.T) {
	backend, err := OpenMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewKV(backend, "x", 0).Set(ctx, []byte("k"), []byte("v")), context.Canceled)
}
