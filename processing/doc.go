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


// Package processing turns documents into searchable vectors.
//
// Chunk splits a document's text into bounded slices that prefer word
// boundaries. A Processor embeds those chunks and upserts them into a
// storage.VectorStore, one document at a time (ProcessDocument), over a
// stream (ProcessStream), or concurrently over a batch (ProcessBatch).
//
// Point identifiers are derived from chunk identifiers, so processing the
// same document twice overwrites its points instead of duplicating them.
//
// # Failure Handling
//
// Embedding and upsert calls are wrapped in a loader.RetryPolicy, so
// transient failures are retried with backoff. A document that still fails
// is logged and counted in ProcessStats; it never stops a stream or batch.
// Stream errors and context cancellation do.
package processing
