package core

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"syscall"
	"time"
)

// IsTransient reports whether err is an infrastructure failure worth retrying:
// connection failures, timeouts and OS-level I/O errors. Data source errors
// and context cancellation are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var dsErr *DataSourceError
	if errors.As(err, &dsErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, ErrTransient) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET,
		syscall.ECONNREFUSED,
		syscall.ECONNABORTED,
		syscall.EPIPE,
		syscall.ETIMEDOUT,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return true
	}
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}

// IsRetryable reports whether a caller may reasonably retry the operation
// later: transient failures, rate limits and unavailable sources.
func IsRetryable(err error) bool {
	return IsTransient(err) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrSourceUnavailable)
}

// RetryAfter extracts the wait suggested by a rate-limited source.
func RetryAfter(err error) (time.Duration, bool) {
	var dsErr *DataSourceError
	if errors.As(err, &dsErr) && dsErr.RetryAfter > 0 {
		return dsErr.RetryAfter, true
	}
	return 0, false
}

// Kind returns a short, stable name for the class of err.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrAuthExpired), errors.Is(err, ErrTokenExpired):
		return "auth_expired"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrDataSource):
		return "data_source"
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrAuthorization):
		return "authentication"
	case errors.Is(err, ErrProcessing):
		return "processing"
	case errors.Is(err, ErrStorage), errors.Is(err, ErrVectorStore):
		return "storage"
	case IsTransient(err):
		return "transient"
	}
	return "unknown"
}
