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


// Package search answers natural-language queries against indexed chunks.
//
// The Searcher embeds the query, asks the vector store for the nearest
// chunks at or above a minimum similarity, and flags results whose text
// contains every significant query word (stop words removed). The flag does
// not change ranking, which is by similarity score only.
//
// A SearchMonitor can observe each stage for diagnostics.
package search
