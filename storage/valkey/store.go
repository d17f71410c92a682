// Package valkey implements storage.VectorStore on valkey-search (or Redis 8)
// through rueidis. Points are hashes under a per-collection key prefix and are
// indexed by an FT HNSW index using cosine distance.
package valkey

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/storage"
	"github.com/redis/rueidis"
)

const (
	keyNamespace = "contentloader"

	fieldID         = "id"
	fieldVector     = "vector"
	fieldPayload    = "payload"
	fieldDocumentID = "document_id"
	fieldSourceType = "source_type"
	fieldScore      = "__vector_score"
)

// Config holds connection parameters.
type Config struct {
	Addrs      []string
	Username   string
	Password   string
	DB         int
	Collection string
}

// Store implements storage.VectorStore via rueidis.
type Store struct {
	client     rueidis.Client
	collection string
	index      string
	prefix     string
	logger     *slog.Logger

	mu        sync.RWMutex
	dimension int
}

var _ storage.VectorStore = (*Store)(nil)

// NewStore connects to the server. The index itself is created lazily by
// EnsureCollection.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("%w: addrs is required", core.ErrConfiguration)
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: collection is required", core.ErrConfiguration)
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create client: %w", core.ErrVectorStore, err)
	}

	return newStore(client, cfg.Collection, slog.Default()), nil
}

func newStore(client rueidis.Client, collection string, logger *slog.Logger) *Store {
	base := keyNamespace + ":" + collection
	return &Store{
		client:     client,
		collection: collection,
		index:      base + ":idx",
		prefix:     base + ":",
		logger:     logger.With("component", "valkey-vector-store", "collection", collection),
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: ping: %w", core.ErrVectorStore, err)
	}
	return nil
}

// EnsureCollection creates the FT index. An existing index is accepted as is.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: %w: dimension %d", core.ErrVectorStore, storage.ErrInvalidQuery, dimension)
	}

	args := []string{
		s.index,
		"ON", "HASH",
		"PREFIX", "1", s.prefix,
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dimension),
		"DISTANCE_METRIC", "COSINE",
		fieldDocumentID, "TAG",
		fieldSourceType, "TAG",
	}
	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if !isRedisErr(err, "index already exists") {
			return fmt.Errorf("%w: create index %s: %w", core.ErrVectorStore, s.index, err)
		}
		s.logger.Debug("index already exists")
	} else {
		s.logger.Info("created index", "dimension", dimension)
	}

	s.mu.Lock()
	s.dimension = dimension
	s.mu.Unlock()
	return nil
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Upsert stores every point as a hash in a single DoMulti round-trip.
func (s *Store) Upsert(ctx context.Context, points []storage.Point) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()

	cmds := make([]rueidis.Completed, 0, len(points))
	for i, p := range points {
		if p.ID == "" {
			return fmt.Errorf("%w: %w: point %d has no id", core.ErrVectorStore, storage.ErrInvalidQuery, i)
		}
		if dim > 0 && len(p.Vector) != dim {
			return fmt.Errorf("%w: %w: point %s has %d dimensions, collection has %d",
				core.ErrVectorStore, storage.ErrDimensionMismatch, p.ID, len(p.Vector), dim)
		}
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("%w: %w: point %s: %w", core.ErrVectorStore, storage.ErrSerializationFailed, p.ID, err)
		}

		cmd := s.b().Hset().Key(s.key(p.ID)).FieldValue().
			FieldValue(fieldID, p.ID).
			FieldValue(fieldVector, vectorToBytes(p.Vector)).
			FieldValue(fieldPayload, string(payload))
		if docID, ok := p.Payload[fieldDocumentID].(string); ok {
			cmd = cmd.FieldValue(fieldDocumentID, docID)
		}
		if st, ok := p.Payload[fieldSourceType].(string); ok {
			cmd = cmd.FieldValue(fieldSourceType, st)
		}
		cmds = append(cmds, cmd.Build())
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return fmt.Errorf("%w: hset %s: %w", core.ErrVectorStore, points[i].ID, err)
		}
	}
	s.logger.Debug("upserted points", "count", len(points))
	return nil
}

// Search runs a KNN query and drops matches below threshold.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, threshold float32) ([]storage.SearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: %w: vector is required", core.ErrVectorStore, storage.ErrInvalidQuery)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %w: limit %d", core.ErrVectorStore, storage.ErrInvalidQuery, limit)
	}

	query := fmt.Sprintf("*=>[KNN %d @%s $BLOB]", limit, fieldVector)
	args := []string{
		s.index, query,
		"RETURN", "3", fieldID, fieldPayload, fieldScore,
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	}
	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") {
			return nil, fmt.Errorf("%w: %w: %s", core.ErrVectorStore, storage.ErrCollectionNotFound, s.collection)
		}
		return nil, fmt.Errorf("%w: search: %w", core.ErrVectorStore, err)
	}

	results, err := s.parseKNNResult(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrVectorStore, err)
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			filtered = append(filtered, r)
		}
	}
	slices.SortFunc(filtered, func(a, b storage.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})
	return filtered, nil
}

// CollectionInfo reads the document count from FT.INFO.
func (s *Store) CollectionInfo(ctx context.Context) (storage.CollectionInfo, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(s.index).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") {
			return storage.CollectionInfo{}, fmt.Errorf("%w: %w: %s", core.ErrVectorStore, storage.ErrCollectionNotFound, s.collection)
		}
		return storage.CollectionInfo{}, fmt.Errorf("%w: index info: %w", core.ErrVectorStore, err)
	}

	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()

	return storage.CollectionInfo{
		Name:      s.collection,
		Dimension: dim,
		Points:    parseNumDocs(raw),
		Distance:  "cosine",
	}, nil
}

// Close shuts down the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// --- Result parsing ---

// parseKNNResult reads [total, key1, fields1, key2, fields2, ...].
func (s *Store) parseKNNResult(raw []rueidis.RedisMessage) ([]storage.SearchResult, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	results := make([]storage.SearchResult, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		m := parseFieldPairs(fields)

		r := storage.SearchResult{ID: m[fieldID]}
		if r.ID == "" {
			r.ID = strings.TrimPrefix(key, s.prefix)
		}
		// Convert __vector_score (cosine distance) to similarity
		if scoreStr, ok := m[fieldScore]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				r.Score = float32(max(0, 1-d))
			}
		}
		if p := m[fieldPayload]; p != "" {
			if err := json.Unmarshal([]byte(p), &r.Payload); err != nil {
				s.logger.Warn("skipping result with unreadable payload", "key", key, "error", err)
				continue
			}
		}
		results = append(results, r)
	}
	return results, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// parseNumDocs finds num_docs in the flat FT.INFO reply. Servers report it as
// either an integer or a string.
func parseNumDocs(raw []rueidis.RedisMessage) int {
	for i := 0; i+1 < len(raw); i += 2 {
		name, err := raw[i].ToString()
		if err != nil || name != "num_docs" {
			continue
		}
		if n, err := raw[i+1].AsInt64(); err == nil {
			return int(n)
		}
		if str, err := raw[i+1].ToString(); err == nil {
			if f, err := strconv.ParseFloat(str, 64); err == nil {
				return int(f)
			}
		}
	}
	return 0
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// isRedisErr checks if err is a server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
