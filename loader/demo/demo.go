// Package demo provides a synthetic executor that generates documents
// without contacting any external system. It backs the CLI demo and is a
// convenient stand-in source for local runs.
package demo

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/loader"
	"golang.org/x/time/rate"
)

// Config controls the generated stream.
type Config struct {
	// SourceName labels the generated documents. Defaults to the source key.
	SourceName string
	// DocumentCount is the number of documents per fetch. Default 5.
	DocumentCount int
	// Delay simulates per-document latency. Default 100ms.
	Delay time.Duration
	// RatePerSecond paces emission with a token bucket instead of Delay when > 0.
	RatePerSecond float64
	// FailAfter makes the stream fail after this many documents; -1 disables it.
	FailAfter int
	// FailWith selects the failure: "transient" (default) or "not_found".
	FailWith string
	// Unhealthy makes Ping report the source as unavailable.
	Unhealthy bool
}

// DefaultConfig returns the defaults used when a source gives no settings.
func DefaultConfig() Config {
	return Config{
		SourceName:    "demo",
		DocumentCount: 5,
		Delay:         100 * time.Millisecond,
		FailAfter:     -1,
		FailWith:      "transient",
	}
}

// Executor generates DocumentCount documents per Fetch call.
type Executor struct {
	sourceType core.SourceType
	cfg        Config
	limiter    *rate.Limiter
	now        func() time.Time
	logger     *slog.Logger
}

var (
	_ loader.Executor = (*Executor)(nil)
	_ loader.Pinger   = (*Executor)(nil)
)

// New creates a demo executor producing documents of the given source type.
func New(sourceType core.SourceType, cfg Config) *Executor {
	e := &Executor{
		sourceType: sourceType,
		cfg:        cfg,
		now:        time.Now,
		logger:     slog.Default().With("component", "demo-executor", "source", cfg.SourceName),
	}
	if cfg.RatePerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return e
}

// Factory builds demo executors from source configuration. It is registered
// for every source type by the CLI.
func Factory(src core.LoaderSource) (loader.Executor, error) {
	cfg, err := ConfigFromSource(src)
	if err != nil {
		return nil, err
	}
	return New(src.SourceType, cfg), nil
}

// ConfigFromSource reads a Config from the source's opaque config map.
// Recognized keys: source_name, document_count, delay, rate, fail_after,
// fail_with, unhealthy.
func ConfigFromSource(src core.LoaderSource) (Config, error) {
	cfg := DefaultConfig()
	cfg.SourceName = src.SourceKey

	m := src.Config
	if v, ok := m["source_name"].(string); ok && v != "" {
		cfg.SourceName = v
	}
	if v, ok := m["document_count"]; ok {
		n, err := toInt(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("%w: document_count %v", core.ErrValidation, v)
		}
		cfg.DocumentCount = n
	}
	if v, ok := m["delay"]; ok {
		d, err := toDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: delay: %w", core.ErrValidation, err)
		}
		cfg.Delay = d
	}
	if v, ok := m["rate"]; ok {
		r, err := toFloat(v)
		if err != nil || r < 0 {
			return Config{}, fmt.Errorf("%w: rate %v", core.ErrValidation, v)
		}
		cfg.RatePerSecond = r
	}
	if v, ok := m["fail_after"]; ok {
		n, err := toInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: fail_after %v", core.ErrValidation, v)
		}
		cfg.FailAfter = n
	}
	if v, ok := m["fail_with"].(string); ok {
		switch v {
		case "transient", "not_found":
			cfg.FailWith = v
		default:
			return Config{}, fmt.Errorf("%w: fail_with %q", core.ErrValidation, v)
		}
	}
	if v, ok := m["unhealthy"].(bool); ok {
		cfg.Unhealthy = v
	}
	return cfg, nil
}

// Ping reports the configured health.
func (e *Executor) Ping(ctx context.Context) error {
	if e.cfg.Unhealthy {
		return core.NewSourceUnavailableError(e.sourceType, errors.New("demo source marked unhealthy"))
	}
	return ctx.Err()
}

// Fetch generates the configured documents. Document i is i hours old, so a
// date range selects a predictable prefix of the stream.
func (e *Executor) Fetch(ctx context.Context, dr core.DateRange) iter.Seq2[*core.Document, error] {
	return func(yield func(*core.Document, error) bool) {
		runID := uuid.NewString()
		now := e.now()
		e.logger.Info("generating documents", "count", e.cfg.DocumentCount, "run", runID)

		for i := 0; i < e.cfg.DocumentCount; i++ {
			if e.cfg.FailAfter >= 0 && i == e.cfg.FailAfter {
				yield(nil, e.failure(i))
				return
			}
			if err := e.pace(ctx); err != nil {
				yield(nil, err)
				return
			}

			doc := e.document(i, now, runID)
			e.logger.Debug("generated document", "id", doc.ID)
			if !yield(doc, nil) {
				return
			}
		}
	}
}

func (e *Executor) pace(ctx context.Context) error {
	if e.limiter != nil {
		return e.limiter.Wait(ctx)
	}
	if e.cfg.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.cfg.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Executor) failure(i int) error {
	if e.cfg.FailWith == "not_found" {
		return core.NewNotFoundError(e.sourceType, fmt.Sprintf("%s/%d", e.cfg.SourceName, i))
	}
	return fmt.Errorf("demo %s: connection dropped at document %d: %w", e.cfg.SourceName, i, core.ErrTransient)
}

func (e *Executor) document(i int, now time.Time, runID string) *core.Document {
	name := e.cfg.SourceName
	id := fmt.Sprintf("demo_%s_%d", name, i)
	url := fmt.Sprintf("https://demo.example.com/%s/%d", name, i)

	meta := core.DocumentMetadata{
		SourceType:  e.sourceType,
		SourceID:    id,
		SourceURL:   url,
		ContentType: core.ContentConversation,
		CreatedAt:   now.AddDate(0, 0, -i),
		UpdatedAt:   now.Add(-time.Duration(i) * time.Hour),
		Details:     e.details(i),
		Extra:       map[string]any{"run_id": runID},
	}

	text := strings.Repeat(fmt.Sprintf("This is demo document content %d from %s. ", i, name), i+1)
	return core.NewDocument(id, fmt.Sprintf("Demo Document %d from %s", i, name), text, meta, core.WithURL(url))
}

func (e *Executor) details(i int) core.SourceDetails {
	name := e.cfg.SourceName
	switch e.sourceType {
	case core.SourceGitHub:
		return core.GitHubIssue{
			Repository:  "demo/" + name,
			IssueNumber: i + 1,
			State:       "open",
			Labels:      []string{"demo"},
		}
	case core.SourceConfluence:
		return core.ConfluencePage{
			SpaceKey: strings.ToUpper(name),
			PageID:   fmt.Sprintf("%d", 1000+i),
			Version:  1,
		}
	default:
		return core.SlackMessage{
			ChannelID: name,
			UserID:    "U_DEMO",
		}
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

// toDuration accepts Go duration strings ("250ms") or a number of seconds.
func toDuration(v any) (time.Duration, error) {
	if s, ok := v.(string); ok {
		return time.ParseDuration(s)
	}
	secs, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}
