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


package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/contentloader/config"
	"github.com/poiesic/contentloader/core"
	"github.com/poiesic/contentloader/loader"
	"github.com/poiesic/contentloader/loader/demo"
	"github.com/urfave/cli/v2"
)

const settingsKey = "settings"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "contentloader",
		Usage: "Load documents from chat, issue and wiki sources into a vector store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				EnvVars: []string{"CONTENTLOADER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides the config file",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Set log format (text, json); overrides the config file",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "demo",
				Usage:  "Run the orchestrator against synthetic sources",
				Action: demoCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "delay",
						Usage: "Simulated latency per generated document",
						Value: 100 * time.Millisecond,
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print every generated document",
					},
				},
			},
			{
				Name:   "run",
				Usage:  "Load sources and index their documents",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Only run sources of this type (slack, github, confluence)",
					},
					&cli.StringFlag{
						Name:  "key",
						Usage: "Only run the source with this key; requires --type",
					},
					&cli.DurationFlag{
						Name:  "since",
						Usage: "Only index documents updated within this window, e.g. 24h",
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on this address while running, e.g. :9090",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search indexed chunks",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
				},
			},
			{
				Name:   "health",
				Usage:  "Check every configured source",
				Action: healthCommand,
			},
			{
				Name:   "sources",
				Usage:  "List configured sources",
				Action: sourcesCommand,
			},
		},
	}
}

// setup loads the settings and configures the default logger.
func setup(c *cli.Context) error {
	settings, err := loadSettings(c.String("config"))
	if err != nil {
		return err
	}
	if level := c.String("log-level"); level != "" {
		settings.Logging.Level = level
	}
	if format := c.String("log-format"); format != "" {
		settings.Logging.Format = format
	}

	if err := setupLogger(c.App.ErrWriter, settings.Logging); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[settingsKey] = settings
	return nil
}

// loadSettings reads path, or returns the defaults when path is empty.
func loadSettings(path string) (config.Settings, error) {
	if path == "" {
		return config.Default(), nil
	}
	settings, err := config.Load(path)
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return settings, nil
}

func settingsFrom(c *cli.Context) config.Settings {
	if s, ok := c.App.Metadata[settingsKey].(config.Settings); ok {
		return s
	}
	return config.Default()
}

func setupLogger(w io.Writer, cfg config.LoggingConfig) error {
	levelStr := strings.ToLower(cfg.Level)

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", cfg.Format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// demoRegistry serves every source type with the synthetic executor. No
// real connectors ship with this binary.
func demoRegistry() *loader.Registry {
	registry := loader.NewRegistry()
	for _, st := range core.SourceTypes() {
		if err := registry.Register(st, demo.Factory); err != nil {
			panic(err)
		}
	}
	return registry
}
