// Package metrics exposes Prometheus instrumentation for loader runs, the
// processing pipeline and the embedding cache.
//
// A nil *Recorder is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "contentloader"

// Outcome labels for loader runs.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeCanceled = "canceled"
)

// Recorder holds every metric the module emits.
type Recorder struct {
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	documentsTotal *prometheus.CounterVec
	retriesTotal   *prometheus.CounterVec
	chunksTotal    prometheus.Counter
	failuresTotal  *prometheus.CounterVec
	cacheTotal     *prometheus.CounterVec
	searchDuration prometheus.Histogram
}

// New creates a Recorder and registers its collectors with reg. Passing
// prometheus.DefaultRegisterer exposes them on the default /metrics handler.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_runs_total",
			Help:      "Completed loader runs by outcome",
		}, []string{"source_type", "outcome"}),

		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loader_run_duration_seconds",
			Help:      "Loader run duration",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"source_type"}),

		documentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_loaded_total",
			Help:      "Documents streamed out of loaders",
		}, []string{"source_type"}),

		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried attempts after transient failures",
		}, []string{"component"}),

		chunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks embedded and written to the vector store",
		}),

		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_failures_total",
			Help:      "Documents skipped by the processing pipeline",
		}, []string{"error_kind"}),

		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		}, []string{"result"}), // "hit" / "miss"

		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Similarity search latency including query embedding",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}

	reg.MustRegister(
		r.runsTotal, r.runDuration,
		r.documentsTotal, r.retriesTotal,
		r.chunksTotal, r.failuresTotal,
		r.cacheTotal, r.searchDuration,
	)
	return r
}

// ObserveRun records a finished loader run.
func (r *Recorder) ObserveRun(sourceType, outcome string, documents int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(sourceType, outcome).Inc()
	r.runDuration.WithLabelValues(sourceType).Observe(elapsed.Seconds())
	r.documentsTotal.WithLabelValues(sourceType).Add(float64(documents))
}

// Retry counts one retried attempt in component.
func (r *Recorder) Retry(component string) {
	if r == nil {
		return
	}
	r.retriesTotal.WithLabelValues(component).Inc()
}

// ChunksIndexed counts chunks written to the store.
func (r *Recorder) ChunksIndexed(n int) {
	if r == nil {
		return
	}
	r.chunksTotal.Add(float64(n))
}

// DocumentFailed counts a document the pipeline skipped.
func (r *Recorder) DocumentFailed(kind string) {
	if r == nil {
		return
	}
	r.failuresTotal.WithLabelValues(kind).Inc()
}

// CacheLookup counts an embedding cache hit or miss.
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheTotal.WithLabelValues(result).Inc()
}

// ObserveSearch records the latency of one search.
func (r *Recorder) ObserveSearch(elapsed time.Duration) {
	if r == nil {
		return
	}
	r.searchDuration.Observe(elapsed.Seconds())
}
