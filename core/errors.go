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


package core

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

// Configuration errors
var (
	// ErrConfiguration is the class of all configuration failures.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation indicates a value failed validation.
	ErrValidation = errors.New("validation error")

	// ErrUnsupportedSourceType indicates no executor can be built for a source type.
	ErrUnsupportedSourceType = errors.New("unsupported source type")

	// ErrExecutorNotFound indicates no executor is registered under a key.
	ErrExecutorNotFound = errors.New("executor not found")
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidChunk indicates a ProcessedChunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidDateRange indicates a range whose start is after its end.
	ErrInvalidDateRange = errors.New("date range start is after end")

	// ErrInvalidLoaderSource indicates a LoaderSource failed validation.
	ErrInvalidLoaderSource = errors.New("invalid loader source")

	// ErrEmptyID indicates a required identifier is empty.
	ErrEmptyID = errors.New("identifier cannot be empty")

	// ErrDetailsMismatch indicates source details of a different source type.
	ErrDetailsMismatch = errors.New("source details do not match source type")
)

// Authentication errors
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrAuthorization  = errors.New("authorization failed")
	ErrTokenExpired   = errors.New("token expired")
)

// Data source errors. These are semantic and never retried automatically.
var (
	ErrDataSource        = errors.New("data source error")
	ErrSourceUnavailable = errors.New("data source unavailable")
	ErrNotFound          = errors.New("resource not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrAuthExpired       = errors.New("authentication expired")
)

// ErrTransient marks an I/O failure that may succeed when retried.
// Executors wrap errors with it when the standard classification would miss them.
var ErrTransient = errors.New("transient i/o failure")

// Processing errors
var (
	ErrProcessing    = errors.New("processing error")
	ErrChunking      = errors.New("chunking failed")
	ErrEmbedding     = errors.New("embedding failed")
	ErrSummarization = errors.New("summarization failed")
)

// Storage errors
var (
	ErrStorage     = errors.New("storage error")
	ErrVectorStore = errors.New("vector store error")
	ErrCache       = errors.New("cache error")
)

// Execution errors
var (
	ErrExecution           = errors.New("execution error")
	ErrLoaderExecution     = errors.New("loader execution failed")
	ErrConcurrentExecution = errors.New("all loaders failed")
)

// ConfigurationError reports an invalid or unusable source configuration.
type ConfigurationError struct {
	SourceType SourceType
	SourceKey  string
	Err        error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.SourceType != "" || e.SourceKey != "" {
		fmt.Fprintf(&b, " for %s", ExecutorKey(e.SourceType, e.SourceKey))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() []error {
	return []error{ErrConfiguration, e.Err}
}

// DataSourceError reports a source-specific fault such as a missing resource
// or an exhausted rate limit.
type DataSourceError struct {
	SourceType SourceType
	// Kind is one of the data source sentinels, e.g. ErrRateLimited.
	Kind    error
	Message string
	// RetryAfter is the source's suggested wait; zero when it gave none.
	RetryAfter time.Duration
	Details    map[string]any
	Err        error
}

func (e *DataSourceError) Error() string {
	var b strings.Builder
	if e.SourceType != "" {
		b.WriteString(string(e.SourceType))
		b.WriteString(": ")
	}
	kind := e.Kind
	if kind == nil {
		kind = ErrDataSource
	}
	b.WriteString(kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.RetryAfter > 0 {
		fmt.Fprintf(&b, " (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DataSourceError) Unwrap() []error {
	errs := []error{ErrDataSource}
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewRateLimitError reports an exhausted rate limit with the source's suggested wait.
func NewRateLimitError(sourceType SourceType, retryAfter time.Duration, message string) *DataSourceError {
	return &DataSourceError{
		SourceType: sourceType,
		Kind:       ErrRateLimited,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(sourceType SourceType, resource string) *DataSourceError {
	return &DataSourceError{
		SourceType: sourceType,
		Kind:       ErrNotFound,
		Message:    resource,
		Details:    map[string]any{"resource": resource},
	}
}

// NewSourceUnavailableError reports a source that cannot be reached.
func NewSourceUnavailableError(sourceType SourceType, err error) *DataSourceError {
	return &DataSourceError{
		SourceType: sourceType,
		Kind:       ErrSourceUnavailable,
		Err:        err,
	}
}

// ProcessingError reports a failure while chunking, embedding or storing a document.
type ProcessingError struct {
	// Stage is one of ErrChunking, ErrEmbedding, ErrSummarization or ErrVectorStore.
	Stage      error
	DocumentID string
	Err        error
}

func (e *ProcessingError) Error() string {
	msg := fmt.Sprintf("processing document %q", e.DocumentID)
	if e.Stage != nil {
		msg += ": " + e.Stage.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessingError) Unwrap() []error {
	errs := []error{ErrProcessing}
	if e.Stage != nil {
		errs = append(errs, e.Stage)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// LoaderExecutionError wraps a failure surfaced from a single executor run.
type LoaderExecutionError struct {
	LoaderType         SourceType
	SourceKey          string
	ErrorKind          string
	DocumentsProcessed int
	Err                error
}

func (e *LoaderExecutionError) Error() string {
	return fmt.Sprintf("loader %s failed after %d documents (%s): %v",
		ExecutorKey(e.LoaderType, e.SourceKey), e.DocumentsProcessed, e.ErrorKind, e.Err)
}

func (e *LoaderExecutionError) Unwrap() []error {
	return []error{ErrExecution, ErrLoaderExecution, e.Err}
}

// ConcurrentExecutionError is returned when every executor in a batch run failed.
type ConcurrentExecutionError struct {
	FailedKeys []string
	Errs       map[string]error
}

func (e *ConcurrentExecutionError) Error() string {
	return fmt.Sprintf("all %d loaders failed: [%s]", len(e.FailedKeys), strings.Join(e.FailedKeys, ", "))
}

func (e *ConcurrentExecutionError) Unwrap() []error {
	errs := []error{ErrExecution, ErrConcurrentExecution}
	for _, key := range e.FailedKeys {
		if err := e.Errs[key]; err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ErrorContext builds a structured description of a failure for logging.
func ErrorContext(operation string, err error, fields map[string]any) map[string]any {
	ctx := map[string]any{
		"operation":  operation,
		"error_kind": Kind(err),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		ctx["error"] = err.Error()
	}
	maps.Copy(ctx, fields)
	return ctx
}
