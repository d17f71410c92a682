package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/contentloader/ai"
	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/metrics"
	"github.com/poiesic/contentloader/storage"
)

const (
	// MinScore is the similarity floor applied to every query.
	MinScore float32 = 0.3

	// DefaultLimit is used when a caller passes a non-positive limit.
	DefaultLimit = 10
)

// Result is a vector-store match annotated with lexical overlap.
type Result struct {
	storage.SearchResult

	// TermCoverage is the fraction of significant query words found in the chunk text.
	TermCoverage float32

	// Verbatim is true when every significant query word appears in the chunk text.
	Verbatim bool
}

// Searcher provides semantic search over indexed chunks.
type Searcher struct {
	embedder ai.Embedder
	store    storage.VectorStore
	minScore float32
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMetrics records query latency.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Searcher) error {
		s.metrics = m
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(embedder ai.Embedder, store storage.VectorStore, opts ...Option) (*Searcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	s := &Searcher{
		embedder: embedder,
		store:    store,
		minScore: MinScore,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// FindSimilar returns up to limit chunks similar to the query, best first.
func (s *Searcher) FindSimilar(ctx context.Context, query string, limit int) ([]Result, error) {
	return s.FindSimilarWithMonitor(ctx, query, limit, nil)
}

// FindSimilarWithMonitor searches for chunks similar to the query with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, limit int, monitor SearchMonitor) ([]Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	start := time.Now()
	monitor.Start(query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, fmt.Errorf("%w: embed query: %w", core.ErrEmbedding, err)
	}
	monitor.AfterEmbedding(len(embedding))

	matches, err := s.store.Search(ctx, embedding, limit, s.minScore)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}
	monitor.AfterVectorSearch(matches)

	results := make([]Result, len(matches))
	for i, match := range matches {
		coverage := termCoverage(match.String("text"), query)
		results[i] = Result{
			SearchResult: match,
			TermCoverage: coverage,
			Verbatim:     coverage == 1,
		}
		if results[i].Verbatim {
			monitor.VerbatimHit(results[i])
		}
	}
	monitor.Finish(results)

	s.metrics.ObserveSearch(time.Since(start))
	s.logger.Info("search completed", "query", query, "results", len(results))
	return results, nil
}
