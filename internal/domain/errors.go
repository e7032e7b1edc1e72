package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery reports empty or oversized input. Returned to the caller
// immediately, never retried.
var ErrInvalidQuery = errors.New("invalid query")

// ErrNoResults reports that retrieval succeeded but nothing cleared the
// similarity threshold. Not a failure: the caller should ask the user to
// rephrase.
var ErrNoResults = errors.New("no results above threshold")

// ErrDimensionMismatch reports an embedding whose dimensionality does not
// match the corpus. This is an invariant violation, never coerced.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// RetrievalUnavailableError reports that the passage store is unreachable.
// Fatal for the request; returning zero or stale results to a clinical
// query without signaling the caller is unacceptable.
type RetrievalUnavailableError struct {
	Err error
}

func (e *RetrievalUnavailableError) Error() string {
	return fmt.Sprintf("passage store unavailable: %v", e.Err)
}

func (e *RetrievalUnavailableError) Unwrap() error { return e.Err }

// Retryable marks the error as transient for the caller's retry prompt.
func (e *RetrievalUnavailableError) Retryable() bool { return true }

// EmbeddingProviderError reports a failure from the external embedding
// provider, classified retryable (rate limit, 5xx, timeout) or not
// (auth, malformed input).
type EmbeddingProviderError struct {
	StatusCode int
	Transient  bool
	Err        error
}

func (e *EmbeddingProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding provider error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("embedding provider error: %v", e.Err)
}

func (e *EmbeddingProviderError) Unwrap() error { return e.Err }

func (e *EmbeddingProviderError) Retryable() bool { return e.Transient }

// retryable is implemented by errors that carry a retry hint for the caller.
type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether the error chain carries a retryable hint.
func IsRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
