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


// Package contentloader wires the loaders, the processing pipeline and a
// vector store into a single service.
package contentloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/poiesic/contentloader/ai"
	"github.com/poiesic/contentloader/ai/cache"
	"github.com/poiesic/contentloader/ai/openai"
	"github.com/poiesic/contentloader/config"
	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/loader"
	"github.com/poiesic/contentloader/metrics"
	"github.com/poiesic/contentloader/orchestrator"
	"github.com/poiesic/contentloader/processing"
	"github.com/poiesic/contentloader/search"
	"github.com/poiesic/contentloader/storage"
	"github.com/poiesic/contentloader/storage/badger"
	"github.com/poiesic/contentloader/storage/valkey"
)

// embeddingCacheNamespace is the badger key namespace of cached vectors.
const embeddingCacheNamespace = "embcache"

// Service ingests configured sources into a vector store and searches it.
type Service struct {
	settings     config.Settings
	backend      *badger.Backend
	store        storage.VectorStore
	ownsStore    bool
	embedder     ai.Embedder
	processor    *processing.Processor
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	registry *loader.Registry
	embedder ai.Embedder
	store    storage.VectorStore
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// WithRegistry sets the executor registry. Default is an empty registry.
func WithRegistry(registry *loader.Registry) ServiceOption {
	return func(o *serviceOptions) {
		o.registry = registry
	}
}

// WithEmbedder replaces the OpenAI-compatible embedder built from settings.
func WithEmbedder(embedder ai.Embedder) ServiceOption {
	return func(o *serviceOptions) {
		o.embedder = embedder
	}
}

// WithVectorStore replaces the store built from settings. The caller keeps
// ownership of store.
func WithVectorStore(store storage.VectorStore) ServiceOption {
	return func(o *serviceOptions) {
		o.store = store
	}
}

// WithMetrics records metrics from every component.
func WithMetrics(m *metrics.Recorder) ServiceOption {
	return func(o *serviceOptions) {
		o.metrics = m
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService builds every component described by settings.
func NewService(settings config.Settings, opts ...ServiceOption) (*Service, error) {
	settings.ApplyDefaults()

	options := &serviceOptions{
		registry: loader.NewRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	s := &Service{
		settings: settings,
		logger:   options.logger.With("component", "service"),
	}

	if err := s.openStore(options); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.openEmbedder(options); err != nil {
		s.Close()
		return nil, err
	}

	retry := loader.NewRetryPolicy(
		loader.WithMaxAttempts(settings.Retry.MaxAttempts),
		loader.WithBaseDelay(settings.Retry.BaseDelay),
		loader.WithRetryLogger(options.logger),
		loader.WithRetryHook(func(int, time.Duration, error) {
			options.metrics.Retry("processing")
		}),
	)
	processor, err := processing.NewProcessor(s.embedder, s.store,
		processing.WithChunkSize(settings.Chunking.ChunkSize),
		processing.WithRetryPolicy(retry),
		processing.WithMetrics(options.metrics),
		processing.WithLogger(options.logger),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.processor = processor

	orch, err := orchestrator.New(settings, nil,
		orchestrator.WithRegistry(options.registry),
		orchestrator.WithMetrics(options.metrics),
		orchestrator.WithLogger(options.logger),
		orchestrator.WithProgressInterval(settings.Execution.ProgressInterval),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.orchestrator = orch

	return s, nil
}

func (s *Service) openStore(options *serviceOptions) error {
	cfg := s.settings.Storage
	if options.store != nil {
		s.store = options.store
		return nil
	}

	switch cfg.Driver {
	case config.DriverValkey:
		store, err := valkey.NewStore(valkey.Config{
			Addrs:      cfg.Addrs,
			Password:   cfg.Password,
			Collection: cfg.Collection,
		})
		if err != nil {
			return err
		}
		s.store = store
	case config.DriverBadger:
		backend, err := badger.OpenBackend(cfg.Path, cfg.InMemory)
		if err != nil {
			return fmt.Errorf("%w: open badger: %w", core.ErrVectorStore, err)
		}
		s.backend = backend
		s.store = badger.NewVectorStore(backend, cfg.Collection, badger.WithLogger(options.logger))
	default:
		return fmt.Errorf("%w: unknown storage driver %q", core.ErrConfiguration, cfg.Driver)
	}
	s.ownsStore = true
	return nil
}

func (s *Service) openEmbedder(options *serviceOptions) error {
	cfg := s.settings.Embedding

	embedder := options.embedder
	if embedder == nil {
		var err error
		embedder, err = openai.NewEmbedder(ai.NewConfig(
			ai.WithEmbeddingHost(cfg.Host),
			ai.WithEmbeddingModel(cfg.Model),
			ai.WithToken(cfg.Token),
			ai.WithDimensions(cfg.Dimensions),
		))
		if err != nil {
			return err
		}
	}
	s.embedder = embedder

	if !cfg.Cache {
		return nil
	}

	// The cache shares the badger backend; a valkey deployment keeps its
	// cache in memory.
	if s.backend == nil {
		backend, err := badger.OpenMemoryBackend()
		if err != nil {
			return fmt.Errorf("%w: open cache backend: %w", core.ErrCache, err)
		}
		s.backend = backend
	}
	cached, err := cache.New(embedder, badger.NewKV(s.backend, embeddingCacheNamespace, 0),
		cache.WithModel(cfg.Model),
		cache.WithMetrics(options.metrics),
		cache.WithLogger(options.logger),
	)
	if err != nil {
		return err
	}
	s.embedder = cached
	return nil
}

// Orchestrator returns the service's orchestrator.
func (s *Service) Orchestrator() *orchestrator.Orchestrator {
	return s.orchestrator
}

// Processor returns the service's processing pipeline.
func (s *Service) Processor() *processing.Processor {
	return s.processor
}

// Ingest streams one source into the vector store in batches of
// execution.batch_size. Documents outside dr are skipped. A source failure
// stops ingestion and is returned with the stats so far.
func (s *Service) Ingest(ctx context.Context, sourceType core.SourceType, sourceKey string, dr core.DateRange) (processing.ProcessStats, error) {
	var stats processing.ProcessStats

	docs := loader.Filter(s.orchestrator.RunSingle(ctx, sourceType, sourceKey, dr), dr)
	for batch, err := range loader.Batches(docs, s.settings.Execution.BatchSize) {
		if err != nil {
			return stats, err
		}
		batchStats, err := s.processor.ProcessBatch(ctx, batch)
		stats.Add(batchStats)
		stats.Elapsed += batchStats.Elapsed
		if err != nil {
			return stats, err
		}
	}

	s.logger.Info("ingested source",
		"executor", core.ExecutorKey(sourceType, sourceKey),
		"documents", stats.Documents, "failed", stats.Failed, "chunks", stats.Chunks)
	return stats, nil
}

// IngestAll runs every source concurrently, then indexes each source's
// documents. Sources that failed to load contribute empty stats.
func (s *Service) IngestAll(ctx context.Context, dr core.DateRange) (map[string]processing.ProcessStats, error) {
	results, err := s.orchestrator.RunAll(ctx, dr, s.settings.Execution.MaxConcurrent)
	if err != nil {
		return nil, err
	}

	all := make(map[string]processing.ProcessStats, len(results))
	for _, key := range slices.Sorted(maps.Keys(results)) {
		docs := slices.DeleteFunc(results[key], func(doc *core.Document) bool {
			return !loader.ShouldProcess(doc, dr)
		})

		var stats processing.ProcessStats
		for batch := range slices.Chunk(docs, s.settings.Execution.BatchSize) {
			batchStats, err := s.processor.ProcessBatch(ctx, batch)
			stats.Add(batchStats)
			stats.Elapsed += batchStats.Elapsed
			if err != nil {
				return all, err
			}
		}
		all[key] = stats
	}
	return all, nil
}

// Search returns the chunks most similar to query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	return s.processor.Search(ctx, query, limit)
}

// Close releases every component the service opened.
func (s *Service) Close() error {
	var errs []error
	if s.orchestrator != nil {
		if err := s.orchestrator.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.processor != nil {
		s.processor.Release()
	}
	if closer, ok := s.embedder.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error("error closing embedder", "err", err)
			errs = append(errs, err)
		}
	}
	if s.store != nil && s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Error("error closing vector store", "err", err)
			errs = append(errs, err)
		}
	}
	if s.backend != nil && !s.backend.IsClosed() {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
