package client

import (
	"errors"
	"net/http"

	"github.com/Sternrassler/mlbam-client/pkg/cache"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNotFound is returned when a feed answered but holds no record for
	// the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrMalformedPayload is returned when a feed body cannot be decoded or
	// lacks the elements every version of the feed carries.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrNoReader is returned by New when no Reader is given.
	ErrNoReader = errors.New("reader is required")
)

// errorClass labels an error for metrics and logs. Fetch errors keep the
// class assigned by the cache; server side statuses are split out so they
// can be retried separately from client side ones.
func errorClass(err error) string {
	switch cache.ClassOf(err) {
	case cache.ErrorClassNetwork:
		return "network"
	case cache.ErrorClassRequest:
		return "request"
	case cache.ErrorClassStatus:
		if cache.StatusOf(err) >= http.StatusInternalServerError {
			return "server"
		}
		return "client"
	default:
		return "unknown"
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	switch errorClass(err) {
	case "network":
		// Network errors, including per attempt timeouts
		return true
	case "server":
		// 5xx server errors should be retried
		return true
	default:
		// 4xx, unexpected 2xx/3xx and malformed URLs will not get better
		return false
	}
}
