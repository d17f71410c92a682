package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/storage"
)

const distanceCosine = "cosine"

// ctxCheckInterval is how many points a scan visits between context checks.
const ctxCheckInterval = 256

// VectorStore implements storage.VectorStore on BadgerDB. Vectors are stored
// normalized, so cosine similarity reduces to a dot product.
type VectorStore struct {
	backend     *Backend
	collection  string
	ownsBackend bool
	logger      *slog.Logger

	mu   sync.RWMutex
	meta *storage.Collection
}

var _ storage.VectorStore = (*VectorStore)(nil)

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *VectorStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewVectorStore creates a store for collection on an existing backend. The
// caller keeps ownership of the backend.
func NewVectorStore(backend *Backend, collection string, opts ...Option) *VectorStore {
	s := &VectorStore{
		backend:    backend,
		collection: collection,
		logger:     slog.Default().With("component", "badger-vector-store", "collection", collection),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens a backend at path and returns a store that owns it.
func Open(path string, inMemory bool, collection string, opts ...Option) (*VectorStore, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %w", core.ErrVectorStore, err)
	}
	s := NewVectorStore(backend, collection, opts...)
	s.ownsBackend = true
	return s, nil
}

// Backend returns the underlying backend so other components (the embedding
// cache) can share it.
func (s *VectorStore) Backend() *Backend {
	return s.backend
}

// EnsureCollection creates the collection if it does not exist yet.
func (s *VectorStore) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: %w: dimension %d", core.ErrVectorStore, storage.ErrInvalidQuery, dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var meta storage.Collection
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCollectionKey(s.collection)
		item, err := tx.Get(key)
		if err == nil {
			return item.Value(func(val []byte) error {
				meta, err = storage.UnmarshalCollection(val)
				if err != nil {
					return err
				}
				if meta.Dimension != dimension {
					return fmt.Errorf("%w: collection %s has dimension %d, requested %d",
						storage.ErrDimensionMismatch, s.collection, meta.Dimension, dimension)
				}
				return nil
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		meta = storage.Collection{
			Name:      s.collection,
			Dimension: dimension,
			Distance:  distanceCosine,
			CreatedAt: time.Now().UTC(),
		}
		value, err := storage.MarshalCollection(meta)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		s.logger.Info("created collection", "dimension", dimension)
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("%w: ensure collection %s: %w", core.ErrVectorStore, s.collection, err)
	}

	s.meta = &meta
	return nil
}

// collectionMeta returns the cached collection description, loading it on
// first use.
func (s *VectorStore) collectionMeta() (storage.Collection, error) {
	s.mu.RLock()
	meta := s.meta
	s.mu.RUnlock()
	if meta != nil {
		return *meta, nil
	}

	var loaded storage.Collection
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCollectionKey(s.collection))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, s.collection)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			loaded, err = storage.UnmarshalCollection(val)
			return err
		})
	}, false)
	if err != nil {
		return storage.Collection{}, err
	}

	s.mu.Lock()
	s.meta = &loaded
	s.mu.Unlock()
	return loaded, nil
}

// Upsert writes points, replacing any existing point with the same ID.
func (s *VectorStore) Upsert(ctx context.Context, points []storage.Point) error {
	if len(points) == 0 {
		return nil
	}
	meta, err := s.collectionMeta()
	if err != nil {
		return fmt.Errorf("%w: upsert: %w", core.ErrVectorStore, err)
	}

	encoded := make([][]byte, len(points))
	for i, p := range points {
		if p.ID == "" {
			return fmt.Errorf("%w: %w: point %d has no id", core.ErrVectorStore, storage.ErrInvalidQuery, i)
		}
		if len(p.Vector) != meta.Dimension {
			return fmt.Errorf("%w: %w: point %s has %d dimensions, collection has %d",
				core.ErrVectorStore, storage.ErrDimensionMismatch, p.ID, len(p.Vector), meta.Dimension)
		}
		p.Vector = normalize(p.Vector)
		if encoded[i], err = storage.MarshalPoint(p); err != nil {
			return fmt.Errorf("%w: %w", core.ErrVectorStore, err)
		}
	}

	err = s.backend.WithBatch(ctx, func(wb *badger.WriteBatch) error {
		for i, p := range points {
			if err := wb.Set(makePointKey(s.collection, p.ID), encoded[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %d points: %w", core.ErrVectorStore, len(points), err)
	}
	s.logger.Debug("upserted points", "count", len(points))
	return nil
}

// Search scans the collection and returns the best matches at or above
// threshold, highest score first.
func (s *VectorStore) Search(ctx context.Context, vector []float32, limit int, threshold float32) ([]storage.SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %w: limit %d", core.ErrVectorStore, storage.ErrInvalidQuery, limit)
	}
	meta, err := s.collectionMeta()
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", core.ErrVectorStore, err)
	}
	if len(vector) != meta.Dimension {
		return nil, fmt.Errorf("%w: %w: query has %d dimensions, collection has %d",
			core.ErrVectorStore, storage.ErrDimensionMismatch, len(vector), meta.Dimension)
	}

	query := normalize(vector)
	var results []storage.SearchResult

	err = s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePointPrefix(s.collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		visited := 0
		for iter.Rewind(); iter.Valid(); iter.Next() {
			visited++
			if visited%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			var point storage.Point
			err := iter.Item().Value(func(val []byte) error {
				var err error
				point, err = storage.UnmarshalPoint(val)
				return err
			})
			if err != nil {
				return err
			}

			score := dotProduct(query, point.Vector)
			if score >= threshold {
				results = append(results, storage.SearchResult{
					ID:      point.ID,
					Score:   score,
					Payload: point.Payload,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", core.ErrVectorStore, err)
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b storage.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// CollectionInfo reports the collection's dimension and point count.
func (s *VectorStore) CollectionInfo(ctx context.Context) (storage.CollectionInfo, error) {
	meta, err := s.collectionMeta()
	if err != nil {
		return storage.CollectionInfo{}, fmt.Errorf("%w: collection info: %w", core.ErrVectorStore, err)
	}

	count := 0
	err = s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePointPrefix(s.collection)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return ctx.Err()
	}, false)
	if err != nil {
		return storage.CollectionInfo{}, fmt.Errorf("%w: collection info: %w", core.ErrVectorStore, err)
	}

	return storage.CollectionInfo{
		Name:      meta.Name,
		Dimension: meta.Dimension,
		Points:    count,
		Distance:  meta.Distance,
	}, nil
}

// Close closes the backend when the store opened it itself.
func (s *VectorStore) Close() error {
	if !s.ownsBackend {
		return nil
	}
	return s.backend.Close()
}
