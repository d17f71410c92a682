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


package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

type pointRecord struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Collection is the persisted description of a collection.
type Collection struct {
	Name      string    `json:"name"`
	Dimension int       `json:"dimension"`
	Distance  string    `json:"distance"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalPoint serializes a Point to bytes.
func MarshalPoint(p Point) ([]byte, error) {
	data, err := json.Marshal(pointRecord(p))
	if err != nil {
		return nil, fmt.Errorf("%w: point %s: %w", ErrSerializationFailed, p.ID, err)
	}
	return data, nil
}

// UnmarshalPoint deserializes a Point from bytes. Numeric payload values
// decode as float64.
func UnmarshalPoint(data []byte) (Point, error) {
	var rec pointRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Point{}, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return Point(rec), nil
}

// MarshalCollection serializes a Collection to bytes.
func MarshalCollection(c Collection) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("%w: collection %s: %w", ErrSerializationFailed, c.Name, err)
	}
	return data, nil
}

// UnmarshalCollection deserializes a Collection from bytes.
func UnmarshalCollection(data []byte) (Collection, error) {
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return Collection{}, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return c, nil
}
