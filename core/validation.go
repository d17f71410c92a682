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


package core

import "fmt"

// ValidateDateRange checks that a range's start does not come after its end.
func ValidateDateRange(r DateRange) error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End) {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidDateRange)
	}
	return nil
}

// ValidateMetadata validates DocumentMetadata according to domain rules.
//
// Validation rules:
//   - SourceType must be supported
//   - SourceID must not be empty
//   - Details, when present, must belong to SourceType
func ValidateMetadata(m DocumentMetadata) error {
	if !m.SourceType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedSourceType, m.SourceType)
	}
	if m.SourceID == "" {
		return fmt.Errorf("source id: %w", ErrEmptyID)
	}
	if m.Details != nil && m.Details.SourceType() != m.SourceType {
		return fmt.Errorf("%w: %s details on %s document",
			ErrDetailsMismatch, m.Details.SourceType(), m.SourceType)
	}
	return nil
}

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Metadata must be valid
//
// NOT validated:
//   - Text (empty documents are legal and produce no chunks)
//   - Timestamps (documents without one still pass date filtering)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyID)
	}
	if err := ValidateMetadata(doc.Metadata); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// ValidateChunk validates a ProcessedChunk.
func ValidateChunk(c *ProcessedChunk) error {
	if c == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if c.ID == "" || c.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyID)
	}
	if c.ChunkIndex < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidChunk, c.ChunkIndex)
	}
	if c.ChunkType != ChunkOriginal && c.ChunkType != ChunkSummary {
		return fmt.Errorf("%w: chunk type %q", ErrInvalidChunk, c.ChunkType)
	}
	return nil
}

// ValidateLoaderSource validates a source configuration record.
func ValidateLoaderSource(s LoaderSource) error {
	if !s.SourceType.Valid() {
		return &ConfigurationError{
			SourceType: s.SourceType,
			SourceKey:  s.SourceKey,
			Err:        ErrUnsupportedSourceType,
		}
	}
	if s.SourceKey == "" {
		return &ConfigurationError{
			SourceType: s.SourceType,
			Err:        fmt.Errorf("%w: source key: %w", ErrInvalidLoaderSource, ErrEmptyID),
		}
	}
	return nil
}
