// Package config loads contentloader settings from YAML.
//
// Values of the form ${VAR} and ${VAR:-default} are replaced with
// environment variables before parsing, so credentials can stay out of the
// file. Missing fields are filled by ApplyDefaults and the result is checked
// by Validate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/contentloader/core"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverBadger = "badger"
	DriverValkey = "valkey"
)

// Settings holds the complete contentloader configuration.
type Settings struct {
	Logging     LoggingConfig       `yaml:"logging"`
	Retry       RetryConfig         `yaml:"retry"`
	Execution   ExecutionConfig     `yaml:"execution"`
	Chunking    ChunkingConfig      `yaml:"chunking"`
	Embedding   EmbeddingConfig     `yaml:"embedding"`
	Storage     StorageConfig       `yaml:"storage"`
	Credentials CredentialsConfig   `yaml:"credentials"`
	Sources     []core.LoaderSource `yaml:"sources"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: info)
	Format string `yaml:"format"` // text, json (default: text)
}

// RetryConfig holds the retry policy applied to executors and the pipeline.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// ExecutionConfig holds orchestration settings.
type ExecutionConfig struct {
	MaxConcurrent    int `yaml:"max_concurrent"`
	BatchSize        int `yaml:"batch_size"`
	ProgressInterval int `yaml:"progress_interval"`
}

// ChunkingConfig holds chunking settings.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

// EmbeddingConfig holds embedding service settings.
type EmbeddingConfig struct {
	Host       string `yaml:"host"`
	Model      string `yaml:"model"`
	Token      string `yaml:"token"`
	Dimensions int    `yaml:"dimensions"` // 0 = probe the model
	Cache      bool   `yaml:"cache"`
}

// StorageConfig holds vector store settings.
type StorageConfig struct {
	Driver     string   `yaml:"driver"` // badger, valkey (default: badger)
	Path       string   `yaml:"path"`
	InMemory   bool     `yaml:"in_memory"`
	Collection string   `yaml:"collection"`
	Addrs      []string `yaml:"addrs"`
	Password   string   `yaml:"password"`
}

// CredentialsConfig holds secrets handed to source connectors.
type CredentialsConfig struct {
	GitHubToken   string `yaml:"github_token"`
	SlackBotToken string `yaml:"slack_bot_token"`
	DatabaseURL   string `yaml:"database_url"`
	RedisURL      string `yaml:"redis_url"`
}

// Default returns settings with every default applied and no sources.
func Default() Settings {
	var s Settings
	s.ApplyDefaults()
	return s
}

// Load reads settings from a YAML file.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Settings{}, fmt.Errorf("%w: failed to read config %s: %w", core.ErrConfiguration, path, err)
	}
	return Parse(data)
}

// Parse decodes settings from YAML bytes, then applies defaults and validates.
func Parse(data []byte) (Settings, error) {
	data = expandEnvVars(data)

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: failed to parse config: %w", core.ErrConfiguration, err)
	}

	s.ApplyDefaults()

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid config: %w", err)
	}
	return s, nil
}

// ApplyDefaults fills empty fields with default values.
func (s *Settings) ApplyDefaults() {
	if s.Logging.Level == "" {
		s.Logging.Level = "info"
	}
	if s.Logging.Format == "" {
		s.Logging.Format = "text"
	}
	if s.Retry.MaxAttempts <= 0 {
		s.Retry.MaxAttempts = 3
	}
	if s.Retry.BaseDelay <= 0 {
		s.Retry.BaseDelay = time.Second
	}
	if s.Execution.MaxConcurrent <= 0 {
		s.Execution.MaxConcurrent = 3
	}
	if s.Execution.BatchSize <= 0 {
		s.Execution.BatchSize = 20
	}
	if s.Execution.ProgressInterval <= 0 {
		s.Execution.ProgressInterval = 100
	}
	if s.Chunking.ChunkSize <= 0 {
		s.Chunking.ChunkSize = 500
	}
	if s.Embedding.Host == "" {
		s.Embedding.Host = "http://localhost:11434/v1"
	}
	if s.Embedding.Model == "" {
		s.Embedding.Model = "all-MiniLM-L6-v2"
	}
	if s.Storage.Driver == "" {
		s.Storage.Driver = DriverBadger
	}
	if s.Storage.Collection == "" {
		s.Storage.Collection = "documents"
	}
	if s.Storage.Driver == DriverBadger && s.Storage.Path == "" && !s.Storage.InMemory {
		s.Storage.Path = "contentloader-data"
	}
}

// Validate checks the settings for correctness.
func (s *Settings) Validate() error {
	switch strings.ToLower(s.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: logging.level must be one of debug, info, warn, error, got %q",
			core.ErrValidation, s.Logging.Level)
	}
	switch s.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format must be \"text\" or \"json\", got %q",
			core.ErrValidation, s.Logging.Format)
	}
	if s.Embedding.Dimensions < 0 {
		return fmt.Errorf("%w: embedding.dimensions cannot be negative", core.ErrValidation)
	}

	switch s.Storage.Driver {
	case DriverBadger:
		if s.Storage.Path == "" && !s.Storage.InMemory {
			return fmt.Errorf("%w: storage.path is required unless storage.in_memory is set", core.ErrValidation)
		}
	case DriverValkey:
		if len(s.Storage.Addrs) == 0 {
			return fmt.Errorf("%w: storage.addrs is required for the valkey driver", core.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: storage.driver must be %q or %q, got %q",
			core.ErrValidation, DriverBadger, DriverValkey, s.Storage.Driver)
	}

	seen := make(map[string]struct{}, len(s.Sources))
	for i, src := range s.Sources {
		if err := core.ValidateLoaderSource(src); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, dup := seen[src.Key()]; dup {
			return &core.ConfigurationError{
				SourceType: src.SourceType,
				SourceKey:  src.SourceKey,
				Err:        fmt.Errorf("%w: duplicate source", core.ErrInvalidLoaderSource),
			}
		}
		seen[src.Key()] = struct{}{}
	}
	return nil
}

// EnabledSources returns the sources with Enabled set, in file order.
func (s *Settings) EnabledSources() []core.LoaderSource {
	return slices.DeleteFunc(slices.Clone(s.Sources), func(src core.LoaderSource) bool {
		return !src.Enabled
	})
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
