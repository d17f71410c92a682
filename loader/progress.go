package loader

import (
	"log/slog"
	"sync"
	"time"
)

// ProgressTracker logs throughput of a stream of unknown length every
// reportInterval items.
type ProgressTracker struct {
	logger         *slog.Logger
	reportInterval int
	current        int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// logger: destination for progress records (typically carries the executor key)
// reportInterval: report progress every N items; values <= 0 disable reports
func NewProgressTracker(logger *slog.Logger, reportInterval int) *ProgressTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressTracker{
		logger:         logger,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.lastReported = 0
}

// Increment increases the current progress by delta.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current += delta
	if p.reportInterval > 0 && p.current-p.lastReported >= p.reportInterval {
		p.report("progress")
		p.lastReported = p.current
	}
}

// Count returns the number of items seen so far.
func (p *ProgressTracker) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finish logs the final count and returns the elapsed time.
func (p *ProgressTracker) Finish() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	p.report("completed")
	return time.Since(p.startTime)
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report logs the current progress. Must be called with lock held.
func (p *ProgressTracker) report(msg string) {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.current) / elapsed.Seconds()
	}
	p.logger.Info(msg, "count", p.current, "elapsed", elapsed.Round(time.Millisecond), "perSecond", rate)
}
