package orchestrator

import (
	"maps"
	"time"
)

// ExecutionStats describes the last completed run of one executor.
type ExecutionStats struct {
	StartTime          time.Time     `json:"start_time"`
	Elapsed            time.Duration `json:"execution_time"`
	DocumentsProcessed int           `json:"documents_processed"`
	Errors             int           `json:"errors_count"`
}

// SuccessRate is processed / (processed + errors), or 0 when both are 0.
func (s ExecutionStats) SuccessRate() float64 {
	total := s.DocumentsProcessed + s.Errors
	if total == 0 {
		return 0
	}
	return float64(s.DocumentsProcessed) / float64(total)
}

// StatsSummary aggregates ExecutionStats across executors.
type StatsSummary struct {
	TotalLoaders       int     `json:"total_loaders"`
	TotalDocuments     int     `json:"total_documents"`
	TotalErrors        int     `json:"total_errors"`
	AverageSuccessRate float64 `json:"average_success_rate"`
}

// StatsReport is the result of Stats.
type StatsReport struct {
	Summary  StatsSummary              `json:"summary"`
	ByLoader map[string]ExecutionStats `json:"by_loader"`
}

// Stats returns the recorded stats keyed by executor, with a summary. The
// boolean is false when no run has been recorded yet.
func (o *Orchestrator) Stats() (StatsReport, bool) {
	o.mu.Lock()
	byLoader := maps.Clone(o.stats)
	o.mu.Unlock()

	if len(byLoader) == 0 {
		return StatsReport{}, false
	}

	var summary StatsSummary
	var rates float64
	for _, s := range byLoader {
		summary.TotalDocuments += s.DocumentsProcessed
		summary.TotalErrors += s.Errors
		rates += s.SuccessRate()
	}
	summary.TotalLoaders = len(byLoader)
	summary.AverageSuccessRate = rates / float64(len(byLoader))

	return StatsReport{Summary: summary, ByLoader: byLoader}, true
}
