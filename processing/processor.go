package processing

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/contentloader/ai"
	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/loader"
	"github.com/poiesic/contentloader/metrics"
	"github.com/poiesic/contentloader/search"
	"github.com/poiesic/contentloader/storage"
)

// streamProgressInterval is how many documents ProcessStream handles between progress logs.
const streamProgressInterval = 10

// ProcessStats summarizes one ProcessStream or ProcessBatch call.
type ProcessStats struct {
	Documents int
	Failed    int
	Chunks    int
	Elapsed   time.Duration
}

// Add accumulates the counters of o. Elapsed is left unchanged.
func (s *ProcessStats) Add(o ProcessStats) {
	s.Documents += o.Documents
	s.Failed += o.Failed
	s.Chunks += o.Chunks
}

// Processor drives documents through chunking, embedding and storage.
type Processor struct {
	embedder  ai.Embedder
	store     storage.VectorStore
	searcher  *search.Searcher
	chunkSize int
	pool      *ants.Pool
	retry     *loader.RetryPolicy
	metrics   *metrics.Recorder
	logger    *slog.Logger

	mu      sync.Mutex
	ensured bool
}

// Option configures a Processor.
type Option func(*Processor) error

// WithChunkSize sets the chunk length in characters.
// Default is DefaultChunkSize.
func WithChunkSize(size int) Option {
	return func(p *Processor) error {
		if size <= 0 {
			return fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrValidation, size)
		}
		p.chunkSize = size
		return nil
	}
}

// WithPoolSize sets the worker pool size used by ProcessBatch.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Processor) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithRetryPolicy sets the policy applied to embedding and upsert calls.
func WithRetryPolicy(policy *loader.RetryPolicy) Option {
	return func(p *Processor) error {
		p.retry = policy
		return nil
	}
}

// WithMetrics records indexed chunks, failures and retries.
func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Processor) error {
		p.metrics = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewProcessor creates a processor over the given collaborators.
func NewProcessor(embedder ai.Embedder, store storage.VectorStore, opts ...Option) (*Processor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	p := &Processor{
		embedder:  embedder,
		store:     store,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "processor")

	if p.pool == nil {
		if err := WithPoolSize(max(runtime.NumCPU()/2, 1))(p); err != nil {
			return nil, err
		}
	}
	if p.retry == nil {
		p.retry = loader.NewRetryPolicy(
			loader.WithRetryLogger(p.logger),
			loader.WithRetryHook(func(int, time.Duration, error) {
				p.metrics.Retry("processing")
			}),
		)
	}

	searcher, err := search.NewSearcher(embedder, store,
		search.WithLogger(p.logger), search.WithMetrics(p.metrics))
	if err != nil {
		p.Release()
		return nil, err
	}
	p.searcher = searcher

	p.logger.Info("document processor initialized", "chunkSize", p.chunkSize, "poolSize", p.pool.Cap())
	return p, nil
}

// Chunk splits doc with the processor's chunk size.
func (p *Processor) Chunk(doc *core.Document) []*core.ProcessedChunk {
	return Chunk(doc, p.chunkSize)
}

// ProcessDocument chunks, embeds and stores a single document. A document
// without text is a no-op.
func (p *Processor) ProcessDocument(ctx context.Context, doc *core.Document) error {
	_, err := p.processDocument(ctx, doc)
	return err
}

func (p *Processor) processDocument(ctx context.Context, doc *core.Document) (int, error) {
	if doc == nil || doc.ID == "" {
		return 0, &core.ProcessingError{Stage: core.ErrChunking, Err: core.ErrInvalidDocument}
	}

	chunks := p.Chunk(doc)
	if len(chunks) == 0 {
		p.logger.Warn("no chunks generated for document", "document", doc.ID)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		var embedErr error
		vectors, embedErr = p.embedder.EmbedTexts(ctx, texts)
		return embedErr
	})
	if err != nil {
		return 0, &core.ProcessingError{Stage: core.ErrEmbedding, DocumentID: doc.ID, Err: err}
	}
	if len(vectors) != len(chunks) {
		return 0, &core.ProcessingError{
			Stage:      core.ErrEmbedding,
			DocumentID: doc.ID,
			Err:        fmt.Errorf("%w: expected %d, received %d", ai.ErrEmbeddingCount, len(chunks), len(vectors)),
		}
	}

	points := make([]storage.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = storage.PointFromChunk(chunk, vectors[i])
	}
	err = p.retry.Do(ctx, func(ctx context.Context) error {
		return p.store.Upsert(ctx, points)
	})
	if err != nil {
		return 0, &core.ProcessingError{Stage: core.ErrVectorStore, DocumentID: doc.ID, Err: err}
	}

	p.metrics.ChunksIndexed(len(points))
	p.logger.Debug("document processed", "document", doc.ID, "chunks", len(points))
	return len(points), nil
}

// EnsureCollection creates the vector collection sized to the embedder's
// dimension. It talks to the store once per processor.
func (p *Processor) EnsureCollection(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ensured {
		return nil
	}

	var dim int
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		var dimErr error
		dim, dimErr = p.embedder.Dimension(ctx)
		return dimErr
	})
	if err != nil {
		return fmt.Errorf("%w: embedding dimension: %w", core.ErrEmbedding, err)
	}

	err = p.retry.Do(ctx, func(ctx context.Context) error {
		return p.store.EnsureCollection(ctx, dim)
	})
	if err != nil {
		return err
	}
	p.ensured = true
	return nil
}

// ProcessStream processes documents as they arrive. A document that fails
// is logged and skipped. A stream error or cancellation stops processing
// and is returned along with the stats so far.
func (p *Processor) ProcessStream(ctx context.Context, docs iter.Seq2[*core.Document, error]) (stats ProcessStats, err error) {
	start := time.Now()
	defer func() { stats.Elapsed = time.Since(start) }()

	if err := p.EnsureCollection(ctx); err != nil {
		return stats, err
	}

	progress := loader.NewProgressTracker(p.logger, streamProgressInterval)
	progress.Start()

	for doc, err := range docs {
		if err != nil {
			return stats, err
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.Add(p.handle(ctx, doc))
		progress.Increment(1)
	}

	progress.Finish()
	p.logger.Info("finished processing documents",
		"documents", stats.Documents, "failed", stats.Failed, "chunks", stats.Chunks)
	return stats, nil
}

// ProcessBatch processes docs concurrently on the worker pool and waits for
// all of them. Per-document failures are logged and counted.
func (p *Processor) ProcessBatch(ctx context.Context, docs []*core.Document) (ProcessStats, error) {
	var stats ProcessStats
	start := time.Now()

	if err := p.EnsureCollection(ctx); err != nil {
		return stats, err
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			result := p.handle(ctx, doc)
			mu.Lock()
			stats.Add(result)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			p.logger.Error("error submitting document", "document", docID(doc), "err", err)
			mu.Lock()
			stats.Add(ProcessStats{Failed: 1})
			mu.Unlock()
		}
	}
	wg.Wait()

	stats.Elapsed = time.Since(start)
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	p.logger.Debug("batch processed", "documents", stats.Documents, "failed", stats.Failed)
	return stats, nil
}

// handle processes one document and converts a failure into stats.
func (p *Processor) handle(ctx context.Context, doc *core.Document) ProcessStats {
	chunks, err := p.processDocument(ctx, doc)
	if err != nil {
		kind := core.Kind(err)
		p.metrics.DocumentFailed(kind)
		p.logger.Error("error processing document",
			"context", core.ErrorContext("process_document", err, map[string]any{"document_id": docID(doc)}))
		return ProcessStats{Failed: 1}
	}
	return ProcessStats{Documents: 1, Chunks: chunks}
}

// Search embeds query and returns up to limit chunks scoring at least
// search.MinScore. A non-positive limit means search.DefaultLimit.
func (p *Processor) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	return p.searcher.FindSimilar(ctx, query, limit)
}

// Searcher exposes the underlying searcher for monitored queries.
func (p *Processor) Searcher() *search.Searcher {
	return p.searcher
}

// Release releases the worker pool.
// The processor should not be used after calling Release.
func (p *Processor) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func docID(doc *core.Document) string {
	if doc == nil {
		return ""
	}
	return doc.ID
}
