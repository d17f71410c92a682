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


// Package ai provides the embedding abstraction used by the content pipeline.
//
// The processing driver depends on the Embedder interface only, so the
// model backend can be swapped without touching chunking or storage code.
//
// # Implementation Packages
//
//   - ai/openai: production embedder for OpenAI-compatible APIs (Ollama, LocalAI, vLLM)
//   - ai/cache: decorator that stores vectors in a key-value store keyed by model and text
//   - ai/mock: deterministic test double
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewEmbedder, cache.New) return the ai.Embedder
// interface. Test utility constructors (mock.NewMockEmbedder) return CONCRETE
// types so tests can inject behavior and assert call counts.
//
//	embedder, err := openai.NewEmbedder(ai.NewConfig(ai.WithEmbeddingModel("nomic-embed-text")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dim, err := embedder.Dimension(ctx)
//	vectors, err := embedder.EmbedTexts(ctx, []string{"first chunk", "second chunk"})
package ai
