package orchestrator

import (
	"context"
	"time"

	"github.com/poiesic/contentloader/loader"
)

// HealthStatus is the aggregated or per-executor health.
type HealthStatus string

const (
	// Healthy indicates every executor passed its probe.
	Healthy HealthStatus = "healthy"
	// Degraded indicates some executors failed their probe.
	Degraded HealthStatus = "degraded"
	// Unhealthy indicates no executor passed its probe.
	Unhealthy HealthStatus = "unhealthy"
)

// ExecutorHealth is the probe outcome for one executor.
type ExecutorHealth struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message"`
}

// HealthSummary counts probe outcomes.
type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
}

// HealthReport aggregates executor probes.
type HealthReport struct {
	Status    HealthStatus              `json:"status"`
	Timestamp time.Time                 `json:"timestamp"`
	Executors map[string]ExecutorHealth `json:"executors"`
	Summary   HealthSummary             `json:"summary"`
}

// HealthCheck probes every executor. The report is unhealthy when no
// executor passes, including when none is registered, and degraded when
// only some pass.
func (o *Orchestrator) HealthCheck(ctx context.Context) HealthReport {
	report := HealthReport{
		Timestamp: time.Now().UTC(),
		Executors: make(map[string]ExecutorHealth, len(o.executors)),
		Summary:   HealthSummary{Total: len(o.executors)},
	}

	for _, key := range o.EnabledKeys() {
		e := o.executors[key]
		health := o.probe(ctx, e)
		report.Executors[key] = health
		if health.Status == Healthy {
			report.Summary.Healthy++
		} else {
			report.Summary.Unhealthy++
			o.logger.Warn("executor health check failed", "executor", key, "message", health.Message)
		}
	}

	switch {
	case report.Summary.Healthy == 0:
		report.Status = Unhealthy
	case report.Summary.Unhealthy > 0:
		report.Status = Degraded
	default:
		report.Status = Healthy
	}
	return report
}

func (o *Orchestrator) probe(ctx context.Context, e entry) ExecutorHealth {
	if pinger, ok := e.exec.(loader.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			return ExecutorHealth{Status: Unhealthy, Message: "health check failed: " + err.Error()}
		}
		return ExecutorHealth{Status: Healthy, Message: "ping succeeded"}
	}

	if !o.registry.Supports(e.source.SourceType) {
		return ExecutorHealth{Status: Unhealthy, Message: "health check failed: source type no longer registered"}
	}
	return ExecutorHealth{Status: Healthy, Message: "executor initialized successfully"}
}
