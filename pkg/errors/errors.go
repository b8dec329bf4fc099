// Package errors defines the error taxonomy for imgfetch HTTP operations.
//
// Transport errors are never wrapped: the httpclient propagates them to the
// caller exactly as the transport produced them. This package only adds the
// StatusError raised when a final response fails status validation, plus the
// pure classifiers that decide whether an outcome is worth retrying.
package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// StatusError is returned when a final (non-retried or retry-exhausted)
// response fails status validation.
type StatusError struct {
	Code        int
	Status      string
	URL         string
	BodyPreview string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("request to %s failed with status %s", e.URL, e.Status)
	}
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.Code)
}

// IsStatusError reports whether err is a StatusError, returning it if so.
func IsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRetryableStatus reports whether an HTTP status code indicates a
// transient condition worth retrying.
//
// 429 and the whole 5xx range are retryable. Everything else, including
// other 4xx and all 2xx/3xx, is terminal.
func IsRetryableStatus(statusCode int) bool {
	if statusCode == 429 {
		return true
	}
	return statusCode >= 500 && statusCode <= 599
}

// IsRetryableError reports whether a transport error indicates a transient
// condition worth retrying.
//
// Retryable kinds: request timeouts, connection establishment or reset
// failures, truncated reads, and malformed server responses. Unknown error
// kinds are not retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Caller-driven cancellation is never retried
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Timeouts, including deadline expiry inside a transport attempt
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Connection establishment and reset failures
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	// Truncated or interrupted reads
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	// net/http does not export its malformed-response errors, so the
	// message is the only handle on a bad status line.
	msg := err.Error()
	if strings.Contains(msg, "malformed HTTP") ||
		strings.Contains(msg, "transport connection broken") {
		return true
	}

	return false
}
