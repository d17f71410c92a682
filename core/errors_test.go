package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("bad data"), want: false},
		{name: "explicit marker", err: fmt.Errorf("fetch page 3: %w", ErrTransient), want: true},
		{name: "connection reset", err: &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, want: true},
		{name: "bare errno", err: syscall.ECONNREFUSED, want: true},
		{name: "net timeout", err: timeoutErr{}, want: true},
		{name: "unexpected eof", err: fmt.Errorf("decode: %w", io.ErrUnexpectedEOF), want: true},
		{name: "os deadline", err: os.ErrDeadlineExceeded, want: true},
		{name: "path error", err: &fs.PathError{Op: "open", Path: "/x", Err: syscall.EIO}, want: true},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "context deadline", err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded), want: false},
		{name: "rate limited", err: NewRateLimitError(SourceSlack, time.Second, "slow down"), want: false},
		{
			name: "data source error wrapping network failure",
			err:  NewSourceUnavailableError(SourceGitHub, syscall.ECONNRESET),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestDataSourceError(t *testing.T) {
	err := NewRateLimitError(SourceSlack, 30*time.Second, "tier 3 exhausted")

	assert.ErrorIs(t, err, ErrDataSource)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "slack")
	assert.Contains(t, err.Error(), "retry after 30s")

	d, ok := RetryAfter(fmt.Errorf("outer: %w", err))
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, d)

	_, ok = RetryAfter(NewNotFoundError(SourceGitHub, "issue 9"))
	assert.False(t, ok)

	assert.True(t, IsRetryable(err))
	assert.True(t, IsRetryable(NewSourceUnavailableError(SourceConfluence, nil)))
	assert.False(t, IsRetryable(NewNotFoundError(SourceGitHub, "issue 9")))
}

func TestLoaderExecutionError(t *testing.T) {
	cause := NewNotFoundError(SourceGitHub, "repo")
	err := &LoaderExecutionError{
		LoaderType:         SourceGitHub,
		SourceKey:          "main",
		ErrorKind:          Kind(cause),
		DocumentsProcessed: 12,
		Err:                cause,
	}

	assert.ErrorIs(t, err, ErrLoaderExecution)
	assert.ErrorIs(t, err, ErrExecution)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "not_found", err.ErrorKind)
	assert.Contains(t, err.Error(), "github:main")
	assert.Contains(t, err.Error(), "12 documents")

	var dsErr *DataSourceError
	require.ErrorAs(t, err, &dsErr)
	assert.Equal(t, ErrNotFound, dsErr.Kind)
}

func TestConcurrentExecutionError(t *testing.T) {
	errA := errors.New("a failed")
	err := &ConcurrentExecutionError{
		FailedKeys: []string{"slack:a", "slack:b"},
		Errs:       map[string]error{"slack:a": errA},
	}

	assert.ErrorIs(t, err, ErrConcurrentExecution)
	assert.ErrorIs(t, err, errA)
	assert.Contains(t, err.Error(), "slack:a, slack:b")
}

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{SourceType: "jira", SourceKey: "x", Err: ErrUnsupportedSourceType}
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, ErrUnsupportedSourceType)
	assert.Equal(t, "configuration error for jira:x: unsupported source type", err.Error())
	assert.Equal(t, "configuration", Kind(err))
}

func TestProcessingError(t *testing.T) {
	err := &ProcessingError{Stage: ErrEmbedding, DocumentID: "d1", Err: errors.New("model offline")}
	assert.ErrorIs(t, err, ErrProcessing)
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.Contains(t, err.Error(), `"d1"`)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "none", Kind(nil))
	assert.Equal(t, "canceled", Kind(context.Canceled))
	assert.Equal(t, "transient", Kind(syscall.ECONNRESET))
	assert.Equal(t, "rate_limited", Kind(NewRateLimitError(SourceSlack, 0, "")))
	assert.Equal(t, "unknown", Kind(errors.New("boom")))
}

func TestErrorContext(t *testing.T) {
	ctx := ErrorContext("fetch", NewNotFoundError(SourceGitHub, "x"), map[string]any{"source_key": "main"})
	assert.Equal(t, "fetch", ctx["operation"])
	assert.Equal(t, "not_found", ctx["error_kind"])
	assert.Equal(t, "main", ctx["source_key"])
	assert.NotEmpty(t, ctx["timestamp"])
}
