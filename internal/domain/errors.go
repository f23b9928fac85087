package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals a malformed query, limit or offset.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthenticated signals a request that needs a principal but has none.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound signals a missing (or invisible) item.
	ErrNotFound = errors.New("not found")

	// ErrIndexUnavailable signals that the text index cannot serve the query.
	ErrIndexUnavailable = errors.New("text index unavailable")
	// ErrVectorStoreUnavailable signals that stored vectors cannot be read.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrSearchUnavailable signals that every requested retrieval source failed.
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrHistoryWriteFailure signals a failed query-history write. Never surfaced to callers.
	ErrHistoryWriteFailure = errors.New("history write failure")
)

// ValidationError wraps ErrInvalidRequest with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidRequest.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// Invalid creates a validation error for a request field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsSourceUnavailable reports whether err means a retrieval source could not answer.
// Such errors let a hybrid search degrade instead of failing.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrIndexUnavailable) ||
		errors.Is(err, ErrVectorStoreUnavailable) ||
		errors.Is(err, ErrEmbeddingProviderError) ||
		errors.Is(err, ErrEmbeddingQuotaExceeded)
}
