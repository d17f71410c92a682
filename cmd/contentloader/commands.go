package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/contentloader"
	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/loader"
	"github.com/poiesic/contentloader/metrics"
	"github.com/poiesic/contentloader/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func demoSources(delay time.Duration) []core.LoaderSource {
	return []core.LoaderSource{
		{
			SourceType: core.SourceSlack,
			SourceKey:  "channel1",
			Name:       "General Channel",
			Enabled:    true,
			Config:     map[string]any{"source_name": "general", "document_count": 3, "delay": delay.String()},
		},
		{
			SourceType: core.SourceSlack,
			SourceKey:  "channel2",
			Name:       "Dev Channel",
			Enabled:    true,
			Config:     map[string]any{"source_name": "dev", "document_count": 2, "delay": delay.String()},
		},
	}
}

func demoCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()
	w := c.App.Writer
	verbose := c.Bool("verbose")

	orch, err := orchestrator.New(settingsFrom(c), demoSources(c.Duration("delay")),
		orchestrator.WithRegistry(demoRegistry()),
	)
	if err != nil {
		return err
	}
	defer orch.Close()

	fmt.Fprintln(w, "Sources:")
	for _, src := range orch.ListSources() {
		fmt.Fprintf(w, "  %s (%s)\n", src.Key(), src.Name)
	}

	health := orch.HealthCheck(ctx)
	fmt.Fprintf(w, "\nHealth: %s (%d/%d healthy)\n", health.Status, health.Summary.Healthy, health.Summary.Total)

	fmt.Fprintln(w, "\nSingle run slack:channel1:")
	var sample *core.Document
	count := 0
	for doc, err := range orch.RunSingle(ctx, core.SourceSlack, "channel1", core.DateRange{}) {
		if err != nil {
			return err
		}
		if sample == nil {
			sample = doc
		}
		count++
		if verbose {
			fmt.Fprintf(w, "  %s  %s\n", doc.ID, doc.Title)
		}
	}
	fmt.Fprintf(w, "  %d documents\n", count)

	since := core.DateRange{Start: time.Now().Add(-24 * time.Hour)}
	fmt.Fprintf(w, "\nDate-filtered run slack:channel2 since %s:\n", since.Start.Format(time.RFC3339))
	count = 0
	for doc, err := range loader.Filter(orch.RunSingle(ctx, core.SourceSlack, "channel2", since), since) {
		if err != nil {
			return err
		}
		count++
		if verbose {
			fmt.Fprintf(w, "  %s  updated %s\n", doc.ID, doc.UpdatedAt.Format(time.RFC3339))
		}
	}
	fmt.Fprintf(w, "  %d documents\n", count)

	results, err := orch.RunAll(ctx, core.DateRange{}, 0)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nConcurrent run:")
	for _, key := range slices.Sorted(maps.Keys(results)) {
		fmt.Fprintf(w, "  %s: %d documents\n", key, len(results[key]))
	}

	if report, ok := orch.Stats(); ok {
		fmt.Fprintln(w, "\nStats:")
		for _, key := range slices.Sorted(maps.Keys(report.ByLoader)) {
			s := report.ByLoader[key]
			fmt.Fprintf(w, "  %s: %d documents in %s, success rate %.0f%%\n",
				key, s.DocumentsProcessed, s.Elapsed.Round(time.Millisecond), s.SuccessRate()*100)
		}
		fmt.Fprintf(w, "  total: %d documents, %d errors\n", report.Summary.TotalDocuments, report.Summary.TotalErrors)
	}

	if sample != nil {
		data, err := json.Marshal(sample.Map())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\nSerialized %s: %d fields, %d bytes, content hash %s\n",
			sample.ID, len(sample.Map()), len(data), sample.ContentHash())
	}
	return nil
}

func runCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()
	w := c.App.Writer

	sourceType, key := c.String("type"), c.String("key")
	if key != "" && sourceType == "" {
		return cli.Exit("--key requires --type", 1)
	}

	var dr core.DateRange
	if since := c.Duration("since"); since > 0 {
		dr.Start = time.Now().Add(-since)
	}

	opts := []contentloader.ServiceOption{contentloader.WithRegistry(demoRegistry())}
	if addr := c.String("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, contentloader.WithMetrics(metrics.New(reg)))
		stop := serveMetrics(addr, reg)
		defer stop()
	}

	svc, err := contentloader.NewService(settingsFrom(c), opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	if key != "" {
		st, err := core.ParseSourceType(sourceType)
		if err != nil {
			return err
		}
		stats, err := svc.Ingest(ctx, st, key, dr)
		fmt.Fprintf(w, "%s: %d documents, %d chunks, %d failed\n",
			core.ExecutorKey(st, key), stats.Documents, stats.Chunks, stats.Failed)
		return err
	}

	all, err := svc.IngestAll(ctx, dr)
	for _, k := range slices.Sorted(maps.Keys(all)) {
		if sourceType != "" && !strings.HasPrefix(k, sourceType+":") {
			continue
		}
		s := all[k]
		fmt.Fprintf(w, "%s: %d documents, %d chunks, %d failed\n", k, s.Documents, s.Chunks, s.Failed)
	}
	return err
}

// serveMetrics exposes reg on addr until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func searchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("search requires exactly one query argument", 1)
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	svc, err := contentloader.NewService(settingsFrom(c), contentloader.WithRegistry(demoRegistry()))
	if err != nil {
		return err
	}
	defer svc.Close()

	results, err := svc.Search(ctx, c.Args().First(), c.Int("limit"))
	if err != nil {
		return err
	}
	w := c.App.Writer
	if len(results) == 0 {
		fmt.Fprintln(w, "No results")
		return nil
	}
	for i, r := range results {
		marker := ""
		if r.Verbatim {
			marker = " *"
		}
		fmt.Fprintf(w, "%2d. [%.3f]%s %s (%s)\n", i+1, r.Score, marker, r.String("document_id"), r.String("source_type"))
		fmt.Fprintf(w, "    %s\n", truncate(r.String("text"), 120))
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func healthCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	orch, err := orchestrator.New(settingsFrom(c), nil, orchestrator.WithRegistry(demoRegistry()))
	if err != nil {
		return err
	}
	defer orch.Close()

	report := orch.HealthCheck(ctx)
	if err := writeJSON(c.App.Writer, report); err != nil {
		return err
	}
	if report.Status == orchestrator.Unhealthy {
		return cli.Exit("no source is healthy", 2)
	}
	return nil
}

func sourcesCommand(c *cli.Context) error {
	settings := settingsFrom(c)
	out := make([]map[string]any, 0, len(settings.Sources))
	for _, src := range settings.Sources {
		out = append(out, src.Map())
	}
	return writeJSON(c.App.Writer, out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
