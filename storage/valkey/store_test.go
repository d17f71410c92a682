package valkey

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/storage"
	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"
)

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c, "docs")
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c, "docs")
	if err := s.Ping(context.Background()); !errors.Is(err, core.ErrVectorStore) {
		t.Fatalf("expected vector store error, got %v", err)
	}
}

func TestNewStore_Validation(t *testing.T) {
	if _, err := NewStore(Config{Collection: "docs"}); !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("expected configuration error for missing addrs, got %v", err)
	}
	if _, err := NewStore(Config{Addrs: []string{"localhost:6379"}}); !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("expected configuration error for missing collection, got %v", err)
	}
}

func TestEnsureCollection_Creates(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			if cmd[0] != "FT.CREATE" || cmd[1] != "contentloader:docs:idx" {
				return false
			}
			for i, arg := range cmd {
				if arg == "DIM" {
					return cmd[i+1] == "384"
				}
			}
			return false
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c, "docs")
	if err := s.EnsureCollection(context.Background(), 384); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureCollection_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c, "docs")
	if err := s.EnsureCollection(context.Background(), 3); err != nil {
		t.Fatalf("existing index must be accepted, got %v", err)
	}
}

func TestEnsureCollection_Failure(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisError("ERR unknown command")))

	s := NewStoreForTest(c, "docs")
	if err := s.EnsureCollection(context.Background(), 3); !errors.Is(err, core.ErrVectorStore) {
		t.Fatalf("expected vector store error, got %v", err)
	}
	if err := s.EnsureCollection(context.Background(), 0); !errors.Is(err, storage.ErrInvalidQuery) {
		t.Fatalf("expected invalid query, got %v", err)
	}
}

func TestUpsert_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(4)),
			mock.Result(mock.RedisInt64(4)),
		})

	s := NewStoreForTest(c, "docs")
	err := s.Upsert(context.Background(), []storage.Point{
		{ID: "a", Vector: []float32{1, 0}, Payload: map[string]any{"document_id": "d1", "source_type": "slack"}},
		{ID: "b", Vector: []float32{0, 1}, Payload: map[string]any{"text": "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsert_Empty(t *testing.T) {
	s := NewStoreForTest(nil, "docs")
	if err := s.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsert_Failure(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.ErrorResult(errors.New("connection reset")),
		})

	s := NewStoreForTest(c, "docs")
	err := s.Upsert(context.Background(), []storage.Point{{ID: "a", Vector: []float32{1}}})
	if !errors.Is(err, core.ErrVectorStore) {
		t.Fatalf("expected vector store error, got %v", err)
	}
}

func TestUpsert_DimensionChecked(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c, "docs")
	if err := s.EnsureCollection(context.Background(), 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.Upsert(context.Background(), []storage.Point{{ID: "a", Vector: []float32{1, 2, 3}}})
	if !errors.Is(err, storage.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
	err = s.Upsert(context.Background(), []storage.Point{{Vector: []float32{1, 2}}})
	if !errors.Is(err, storage.ErrInvalidQuery) {
		t.Fatalf("expected invalid query, got %v", err)
	}
}

func TestSearch_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "contentloader:docs:idx" && cmd[2] == "*=>[KNN 5 @vector $BLOB]"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(3),
			mock.RedisString("contentloader:docs:far"),
			mock.RedisArray(
				mock.RedisString("id"), mock.RedisString("far"),
				mock.RedisString("__vector_score"), mock.RedisString("0.9"),
				mock.RedisString("payload"), mock.RedisString(`{"text":"far"}`),
			),
			mock.RedisString("contentloader:docs:near"),
			mock.RedisArray(
				mock.RedisString("id"), mock.RedisString("near"),
				mock.RedisString("__vector_score"), mock.RedisString("0.1"),
				mock.RedisString("payload"), mock.RedisString(`{"text":"near","chunk_index":4}`),
			),
			mock.RedisString("contentloader:docs:mid"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("0.4"),
			),
		)))

	s := NewStoreForTest(c, "docs")
	results, err := s.Search(context.Background(), []float32{0.1, 0.2}, 5, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d", len(results))
	}
	// cosine distance 0.1 maps to similarity 0.9
	if results[0].ID != "near" || results[0].Score < 0.89 || results[0].Score > 0.91 {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[0].String("text") != "near" {
		t.Errorf("payload not decoded: %v", results[0].Payload)
	}
	if idx, ok := results[0].Int("chunk_index"); !ok || idx != 4 {
		t.Errorf("chunk_index = %d, %v", idx, ok)
	}
	// id falls back to the key suffix
	if results[1].ID != "mid" {
		t.Errorf("expected id from key, got %q", results[1].ID)
	}
}

func TestSearch_Validation(t *testing.T) {
	s := NewStoreForTest(nil, "docs")
	ctx := context.Background()

	if _, err := s.Search(ctx, nil, 5, 0); !errors.Is(err, storage.ErrInvalidQuery) {
		t.Errorf("expected error for empty vector, got %v", err)
	}
	if _, err := s.Search(ctx, []float32{1}, 0, 0); !errors.Is(err, storage.ErrInvalidQuery) {
		t.Errorf("expected error for limit=0, got %v", err)
	}
}

func TestSearch_UnknownIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c, "docs")
	_, err := s.Search(context.Background(), []float32{1}, 3, 0)
	if !errors.Is(err, storage.ErrCollectionNotFound) {
		t.Fatalf("expected collection not found, got %v", err)
	}
}

func TestCollectionInfo(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "contentloader:docs:idx")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("index_name"), mock.RedisString("contentloader:docs:idx"),
			mock.RedisString("num_docs"), mock.RedisString("42"),
		)))

	s := NewStoreForTest(c, "docs")
	info, err := s.CollectionInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Points != 42 || info.Name != "docs" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestCollectionInfo_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "contentloader:docs:idx")).
		Return(mock.Result(mock.RedisError("Unknown index name")))

	s := NewStoreForTest(c, "docs")
	if _, err := s.CollectionInfo(context.Background()); !errors.Is(err, storage.ErrCollectionNotFound) {
		t.Fatalf("expected collection not found, got %v", err)
	}
}

func TestVectorToBytes(t *testing.T) {
	b := vectorToBytes([]float32{1.5, -2})
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32([]byte(b[4:]))); got != -2 {
		t.Errorf("second element = %v", got)
	}
}
