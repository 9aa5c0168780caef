package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory determines how errors should be handled by retry logic.
type ErrorCategory int

const (
	// Recoverable errors are retried: network failures, timeouts, 5xx, 408, 429.
	Recoverable ErrorCategory = iota
	// Irrecoverable errors fail immediately: other 4xx.
	Irrecoverable
)

func (c ErrorCategory) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// RequestError is returned for every failed backend call. StatusCode is 0
// when no HTTP response was received (no connectivity, timeout).
type RequestError struct {
	Category   ErrorCategory
	StatusCode int
	Body       string
	Underlying error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %v", e.Category, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("[%s] %v", e.Category, e.Underlying)
}

func (e *RequestError) Unwrap() error { return e.Underlying }

// ClassifyHTTPError builds a RequestError for a non-2xx response.
func ClassifyHTTPError(statusCode int, body string, underlying error) *RequestError {
	return &RequestError{
		Category:   categoryFor(statusCode),
		StatusCode: statusCode,
		Body:       body,
		Underlying: underlying,
	}
}

func categoryFor(statusCode int) ErrorCategory {
	switch {
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return Recoverable
	case statusCode >= 400 && statusCode < 500:
		return Irrecoverable
	default:
		return Recoverable
	}
}

// NewHTTPError creates a RequestError for operation failing with statusCode.
func NewHTTPError(statusCode int, body, operation string) *RequestError {
	return ClassifyHTTPError(statusCode, body, fmt.Errorf("%s failed: HTTP %d", operation, statusCode))
}

// NewNetworkError creates a RequestError for a transport-level failure.
func NewNetworkError(operation string, err error) *RequestError {
	return &RequestError{
		Category:   Recoverable,
		Underlying: fmt.Errorf("%s network error: %w", operation, err),
	}
}

// AsRequestError unwraps err into a *RequestError.
func AsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsIrrecoverable reports whether err must not be retried.
func IsIrrecoverable(err error) bool {
	re, ok := AsRequestError(err)
	return ok && re.Category == Irrecoverable
}

// IsNetworkError reports a failure without any HTTP response.
func IsNetworkError(err error) bool {
	re, ok := AsRequestError(err)
	return ok && re.StatusCode == 0
}

// IsServerError reports a 5xx response.
func IsServerError(err error) bool {
	re, ok := AsRequestError(err)
	return ok && re.StatusCode >= 500 && re.StatusCode < 600
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	if re, ok := AsRequestError(err); ok {
		return re.StatusCode
	}
	return 0
}

func retryable(err error) bool {
	re, ok := AsRequestError(err)
	if !ok {
		return false
	}
	if re.StatusCode == 0 {
		return true
	}
	return re.StatusCode >= 500 && re.StatusCode < 600
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsNetworkError(err):
		return "network"
	case IsServerError(err):
		return "server_error"
	default:
		return "client_error"
	}
}
