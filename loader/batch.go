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


package loader

import "iter"

const (
	// DefaultBatchSize is the default number of documents per batch.
	DefaultBatchSize = 20
)

// Batches regroups seq into ordered, non-overlapping slices of at most size
// items. The final batch may be shorter. When seq yields an error, the
// pending partial batch is yielded first, followed by the error.
// Each batch is a fresh slice; consumers may retain it.
func Batches[T any](seq iter.Seq2[T, error], size int) iter.Seq2[[]T, error] {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return func(yield func([]T, error) bool) {
		batch := make([]T, 0, size)
		for item, err := range seq {
			if err != nil {
				if len(batch) > 0 && !yield(batch, nil) {
					return
				}
				yield(nil, err)
				return
			}

			batch = append(batch, item)
			if len(batch) == size {
				if !yield(batch, nil) {
					return
				}
				batch = make([]T, 0, size)
			}
		}
		if len(batch) > 0 {
			yield(batch, nil)
		}
	}
}
