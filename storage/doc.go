// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage defines the vector store and key/value abstractions used by
// the processing pipeline and the embedding cache.
//
// # Backends
//
// Two implementations ship with the module:
//
//   - storage/badger: an embedded store. Points are JSON records in BadgerDB
//     and search is a brute-force cosine scan over normalized vectors.
//   - storage/valkey: a server store backed by valkey-search (or Redis 8).
//     Points are hashes indexed by an FT HNSW cosine index.
//
// # Usage
//
// Open an embedded store:
//
//	store, err := badger.Open("/path/to/db", false, "documents")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.EnsureCollection(ctx, 384); err != nil {
//	    log.Fatal(err)
//	}
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.OpenMemoryBackend()
//	store := badger.NewVectorStore(backend, "test")
//
// # Point identity
//
// Point ids are deterministic (see core.ProcessedChunk.PointID), so upserting
// a re-delivered chunk overwrites the existing point instead of adding a
// duplicate.
//
// # Thread Safety
//
// All implementations must be safe for concurrent use.
package storage
