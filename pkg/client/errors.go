package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/catalog-cache/pkg/ratelimit"
	"github.com/Sternrassler/catalog-cache/pkg/workerpool"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrBodyTooLarge is returned when a response body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// ErrorClass represents a classification of upstream errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (except 429).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and exhausted upstream quota.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport and timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassOverloaded represents requests rejected by the local worker pool.
	ErrorClassOverloaded ErrorClass = "overloaded"
)

// HTTPError is a failed upstream request: either a non-2xx status or a
// transport error (StatusCode 0).
type HTTPError struct {
	StatusCode int
	URL        string
	Class      ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream %s error: GET %s: %v", e.Class, e.URL, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): GET %s: %v",
			e.Class, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): GET %s",
		e.Class, e.StatusCode, e.URL)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassServer
	}
}

// ClassifyError returns the error class of any error produced while
// talking to the upstream, or "" for errors that are not upstream failures
// (context cancellation, malformed data, local preconditions).
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ""
	}

	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Class
	case errors.Is(err, workerpool.ErrOverloaded):
		return ErrorClassOverloaded
	case errors.Is(err, ratelimit.ErrQuotaExhausted):
		return ErrorClassRateLimit
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ""
	default:
		return ""
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx will not change on retry
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return true
	case ErrorClassOverloaded:
		return true
	default:
		return false
	}
}
