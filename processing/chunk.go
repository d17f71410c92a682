package processing

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/poiesic/contentloader/core"
)

// DefaultChunkSize is the maximum chunk length in characters.
const DefaultChunkSize = 500

// Chunk splits doc.Text into chunks of at most size characters.
//
// When a slice would end in the middle of a word, it is cut back to its last
// space, provided that space lies past the middle of the slice. Text after
// the cut starts the next slice. Chunks are trimmed, blank slices are
// dropped, and indexes are assigned in emission order from 0.
func Chunk(doc *core.Document, size int) []*core.ProcessedChunk {
	if doc == nil || doc.Text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}

	text := []rune(doc.Text)
	var chunks []*core.ProcessedChunk

	for start := 0; start < len(text); {
		end := min(start+size, len(text))
		if end < len(text) && !unicode.IsSpace(text[end]) {
			if cut := lastSpace(text[start:end]); 2*cut > size {
				end = start + cut
			}
		}

		piece := strings.TrimSpace(string(text[start:end]))
		if piece != "" {
			index := len(chunks)
			chunks = append(chunks, core.NewChunk(
				fmt.Sprintf("%s_chunk_%d", doc.ID, index),
				piece,
				core.ChunkOriginal,
				index,
				doc.ID,
				doc.Metadata.Clone(),
			))
		}
		start = end
	}

	return chunks
}

// lastSpace returns the index of the last ASCII space in s, or -1.
func lastSpace(s []rune) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ' ' {
			return i
		}
	}
	return -1
}
