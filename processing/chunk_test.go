package processing

import (
	"fmt"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/contentloader/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDoc(id, text string) *core.Document {
	meta := core.DocumentMetadata{
		SourceType: core.SourceConfluence,
		SourceID:   id,
		Details:    core.ConfluencePage{SpaceKey: "ENG", PageID: id, Version: 3},
	}
	return core.NewDocument(id, "Title "+id, text, meta)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestChunk_EmptyText(t *testing.T) {
	assert.Empty(t, Chunk(newDoc("d", ""), 10))
	assert.Empty(t, Chunk(nil, 10))
}

func TestChunk_ShortText(t *testing.T) {
	chunks := Chunk(newDoc("d", "  hello world  "), 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Text)
	assert.Equal(t, "d_chunk_0", chunks[0].ID)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, core.ChunkOriginal, chunks[0].ChunkType)
	assert.Equal(t, "d", chunks[0].DocumentID)
	assert.NotEmpty(t, chunks[0].ContentHash)
}

func TestChunk_WordBoundary(t *testing.T) {
	// The slice "alpha beta gamm" ends inside "gamma"; its last space (index 10)
	// lies past the middle, so the chunk backs off to "alpha beta".
	chunks := Chunk(newDoc("d", "alpha beta gamma delta"), 15)
	require.Len(t, chunks, 2)
	assert.Equal(t, "alpha beta", chunks[0].Text)
	assert.Equal(t, "gamma delta", chunks[1].Text)
}

func TestChunk_NoBackoffWhenSpaceTooEarly(t *testing.T) {
	// The only space is at index 2, not past half of 10, so the word is split.
	chunks := Chunk(newDoc("d", "ab cdefghijklmnop"), 10)
	require.Len(t, chunks, 2)
	assert.Equal(t, "ab cdefghi", chunks[0].Text)
	assert.Equal(t, "jklmnop", chunks[1].Text)
}

func TestChunk_BoundaryOnWhitespace(t *testing.T) {
	// The character after the slice is a space, so no backoff happens.
	chunks := Chunk(newDoc("d", "abcde fghi"), 5)
	require.Len(t, chunks, 2)
	assert.Equal(t, "abcde", chunks[0].Text)
	assert.Equal(t, "fghi", chunks[1].Text)
}

func TestChunk_WhitespaceOnlySlicesDropped(t *testing.T) {
	text := "first" + strings.Repeat(" ", 12) + "second"
	chunks := Chunk(newDoc("d", text), 5)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	assert.Equal(t, []string{"first", "sec", "ond"}, texts)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, fmt.Sprintf("d_chunk_%d", i), c.ID)
	}
}

func TestChunk_CountsRunes(t *testing.T) {
	chunks := Chunk(newDoc("d", strings.Repeat("é", 12)), 5)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 5)
		assert.True(t, utf8.ValidString(c.Text))
	}
}

func TestChunk_Properties(t *testing.T) {
	words := []string{"deploy", "pipeline", "staging", "a", "rollback", "incident", "review", "to", "on-call"}
	var b strings.Builder
	for i := range 400 {
		b.WriteString(words[i%len(words)])
		if i%17 == 0 {
			b.WriteString("\n\n")
		} else {
			b.WriteString(" ")
		}
	}
	text := b.String()

	for _, size := range []int{7, 50, 120, 500} {
		t.Run(fmt.Sprintf("size %d", size), func(t *testing.T) {
			chunks := Chunk(newDoc("doc", text), size)
			require.NotEmpty(t, chunks)

			var rebuilt strings.Builder
			for i, c := range chunks {
				assert.Equal(t, i, c.ChunkIndex, "indexes are contiguous")
				assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), size)
				assert.NotEmpty(t, strings.TrimSpace(c.Text))
				assert.Equal(t, "ENG", c.SourceMetadata.Details.(core.ConfluencePage).SpaceKey)
				rebuilt.WriteString(c.Text)
			}
			assert.Equal(t, stripSpace(text), stripSpace(rebuilt.String()), "no text is lost")
		})
	}
}

func TestChunk_Deterministic(t *testing.T) {
	doc := newDoc("d", strings.Repeat("some words here ", 80))
	a := Chunk(doc, 100)
	b := Chunk(doc, 100)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ContentHash, b[i].ContentHash)
		assert.Equal(t, a[i].PointID(), b[i].PointID())
	}
}
