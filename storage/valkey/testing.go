package valkey

import (
	"log/slog"

	"github.com/redis/rueidis"
)

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client, collection string) *Store {
	return newStore(c, collection, slog.Default())
}
