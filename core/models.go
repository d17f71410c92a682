package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"maps"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a deterministic identifier derived from content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID as fixed-width hex, suitable for storage keys.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// contentHash returns the first 16 hex characters of the SHA-256 digest of s.
// It is used for deduplication, not security.
func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// SourceType identifies the kind of external system a document came from.
type SourceType string

const (
	SourceSlack      SourceType = "slack"
	SourceGitHub     SourceType = "github"
	SourceConfluence SourceType = "confluence"
)

// SourceTypes lists every supported source type.
func SourceTypes() []SourceType {
	return []SourceType{SourceSlack, SourceGitHub, SourceConfluence}
}

// Valid reports whether t is one of the supported source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceSlack, SourceGitHub, SourceConfluence:
		return true
	}
	return false
}

// ParseSourceType converts s into a SourceType.
func ParseSourceType(s string) (SourceType, error) {
	t := SourceType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSourceType, s)
	}
	return t, nil
}

// ContentType classifies the body of a document.
type ContentType string

const (
	ContentSourceCode    ContentType = "source_code"
	ContentDocumentation ContentType = "documentation"
	ContentConversation  ContentType = "conversation"
	ContentMixed         ContentType = "mixed_content"
)

// ChunkType distinguishes original text from derived summaries.
type ChunkType string

const (
	ChunkOriginal ChunkType = "original"
	ChunkSummary  ChunkType = "summary"
)

// DateRange is an optionally bounded time window. A zero Start or End means
// that side is unbounded; the zero DateRange includes every instant.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Includes reports whether t falls inside the range. Bounds are inclusive.
func (r DateRange) Includes(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// IsUnbounded reports whether neither bound is set.
func (r DateRange) IsUnbounded() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// DocumentMetadata describes where a document came from.
type DocumentMetadata struct {
	SourceType  SourceType
	SourceID    string
	SourceURL   string
	ContentType ContentType
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Details holds the typed, source-specific attributes. Nil for plain documents.
	Details SourceDetails

	// Extra carries any further source-specific attributes.
	Extra map[string]any
}

// Clone returns a copy of m whose Extra map is not shared.
func (m DocumentMetadata) Clone() DocumentMetadata {
	out := m
	if m.Extra != nil {
		out.Extra = maps.Clone(m.Extra)
	}
	return out
}

// Map flattens the metadata, including its source details, into a plain map.
func (m DocumentMetadata) Map() map[string]any {
	out := map[string]any{
		"source_type":  string(m.SourceType),
		"source_id":    m.SourceID,
		"source_url":   nilIfEmpty(m.SourceURL),
		"content_type": nilIfEmpty(string(m.ContentType)),
		"created_at":   isoOrNil(m.CreatedAt),
		"updated_at":   isoOrNil(m.UpdatedAt),
	}
	maps.Copy(out, m.Extra)
	if m.Details != nil {
		maps.Copy(out, m.Details.Fields())
	}
	return out
}

// Document is a single unit of content fetched from a source. It is treated
// as read-only once constructed.
type Document struct {
	ID        string
	Title     string
	Text      string
	Metadata  DocumentMetadata
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentOption configures optional Document fields.
type DocumentOption func(*Document)

// WithURL sets the document URL.
func WithURL(url string) DocumentOption {
	return func(d *Document) {
		d.URL = url
	}
}

// WithTimestamps sets the document's own timestamps.
func WithTimestamps(created, updated time.Time) DocumentOption {
	return func(d *Document) {
		d.CreatedAt = created
		d.UpdatedAt = updated
	}
}

// NewDocument builds a Document. Timestamps left unset are taken from the
// metadata so that every document carries a best-effort filtering instant.
func NewDocument(id, title, text string, metadata DocumentMetadata, opts ...DocumentOption) *Document {
	d := &Document{
		ID:       id,
		Title:    title,
		Text:     text,
		Metadata: metadata,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = metadata.CreatedAt
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = metadata.UpdatedAt
	}
	return d
}

// ContentHash returns a short, stable hash of the title, text and source id.
func (d *Document) ContentHash() string {
	return contentHash(d.Title + "|" + d.Text + "|" + d.Metadata.SourceID)
}

// Timestamp returns the instant used for date filtering: UpdatedAt, then
// CreatedAt. It returns the zero time when the document has neither.
func (d *Document) Timestamp() time.Time {
	if !d.UpdatedAt.IsZero() {
		return d.UpdatedAt
	}
	return d.CreatedAt
}

// Map exports the document as a plain map.
func (d *Document) Map() map[string]any {
	return map[string]any{
		"id":           d.ID,
		"title":        d.Title,
		"text":         d.Text,
		"metadata":     d.Metadata.Map(),
		"url":          nilIfEmpty(d.URL),
		"created_at":   isoOrNil(d.CreatedAt),
		"updated_at":   isoOrNil(d.UpdatedAt),
		"content_hash": d.ContentHash(),
	}
}

// ProcessedChunk is a bounded slice of a document ready for embedding.
type ProcessedChunk struct {
	ID             string
	Text           string
	ChunkType      ChunkType
	ChunkIndex     int
	DocumentID     string
	SourceMetadata DocumentMetadata

	// Populated only for structured or code content.
	StartLine *int
	EndLine   *int
	NodeType  string

	ContentHash string
}

// NewChunk builds a ProcessedChunk and computes its content hash.
func NewChunk(id, text string, chunkType ChunkType, index int, documentID string, metadata DocumentMetadata) *ProcessedChunk {
	c := &ProcessedChunk{
		ID:             id,
		Text:           text,
		ChunkType:      chunkType,
		ChunkIndex:     index,
		DocumentID:     documentID,
		SourceMetadata: metadata,
	}
	c.ContentHash = c.computeHash()
	return c
}

func (c *ProcessedChunk) computeHash() string {
	return contentHash(fmt.Sprintf("%s|%s|%d", c.Text, c.DocumentID, c.ChunkIndex))
}

// EnsureHash fills ContentHash when a chunk was built without NewChunk.
func (c *ProcessedChunk) EnsureHash() {
	if c.ContentHash == "" {
		c.ContentHash = c.computeHash()
	}
}

// PointID returns the deterministic storage identifier for the chunk.
// Re-delivered chunks map to the same point and overwrite it.
func (c *ProcessedChunk) PointID() string {
	return IDFromContent(c.ID).String()
}

// Payload returns the attributes stored next to the chunk's vector.
func (c *ProcessedChunk) Payload() map[string]any {
	c.EnsureHash()
	payload := map[string]any{
		"chunk_id":     c.ID,
		"text":         c.Text,
		"chunk_type":   string(c.ChunkType),
		"chunk_index":  c.ChunkIndex,
		"document_id":  c.DocumentID,
		"content_hash": c.ContentHash,
	}
	maps.Copy(payload, c.SourceMetadata.Map())
	if c.StartLine != nil {
		payload["start_line"] = *c.StartLine
	}
	if c.EndLine != nil {
		payload["end_line"] = *c.EndLine
	}
	if c.NodeType != "" {
		payload["node_type"] = c.NodeType
	}
	return payload
}

// LoaderSource is the configuration record for one data source.
type LoaderSource struct {
	SourceType SourceType     `yaml:"source_type"`
	SourceKey  string         `yaml:"source_key"`
	Name       string         `yaml:"name"`
	Enabled    bool           `yaml:"enabled"`
	Config     map[string]any `yaml:"config"`
}

// Key returns the registry key "<type>:<key>".
func (s LoaderSource) Key() string {
	return ExecutorKey(s.SourceType, s.SourceKey)
}

// Map exports the source configuration as a plain map.
func (s LoaderSource) Map() map[string]any {
	return map[string]any{
		"source_type": string(s.SourceType),
		"source_key":  s.SourceKey,
		"name":        s.Name,
		"enabled":     s.Enabled,
		"config":      s.Config,
	}
}

// ExecutorKey formats the registry key for a source type and key.
func ExecutorKey(sourceType SourceType, sourceKey string) string {
	return string(sourceType) + ":" + sourceKey
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isoOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}
