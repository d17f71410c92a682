package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/storage"
)

// KV implements storage.KV in one namespace of a Backend.
type KV struct {
	backend   *Backend
	namespace string
	ttl       time.Duration
}

var _ storage.KV = (*KV)(nil)

// NewKV creates a key/value view of backend. Entries expire after ttl when
// ttl > 0.
func NewKV(backend *Backend, namespace string, ttl time.Duration) *KV {
	return &KV{
		backend:   backend,
		namespace: namespace,
		ttl:       ttl,
	}
}

// Get returns the value stored under key, or storage.ErrNotFound.
func (kv *KV) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := kv.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeKVKey(kv.namespace, key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	}, false)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: kv get: %w", core.ErrCache, err)
	}
	return value, nil
}

// Set stores value under key.
func (kv *KV) Set(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := kv.backend.WithTx(func(tx *badger.Txn) error {
		entry := badger.NewEntry(makeKVKey(kv.namespace, key), value)
		if kv.ttl > 0 {
			entry = entry.WithTTL(kv.ttl)
		}
		if err := tx.SetEntry(entry); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("%w: kv set: %w", core.ErrCache, err)
	}
	return nil
}
