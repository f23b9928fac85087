package promptdex

import "github.com/kailas-cloud/promptdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrNotFound               = domain.ErrNotFound
	ErrSearchUnavailable      = domain.ErrSearchUnavailable
	ErrIndexUnavailable       = domain.ErrIndexUnavailable
	ErrVectorStoreUnavailable = domain.ErrVectorStoreUnavailable
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
