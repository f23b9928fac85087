package chi

import "time"

// ErrorResponseCode is the stable machine-readable error code.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest             ErrorResponseCode = "bad_request"
	ErrorResponseCodeInvalidRequest         ErrorResponseCode = "invalid_request"
	ErrorResponseCodeUnauthenticated        ErrorResponseCode = "unauthenticated"
	ErrorResponseCodeNotFound               ErrorResponseCode = "not_found"
	ErrorResponseCodeIndexUnavailable       ErrorResponseCode = "index_unavailable"
	ErrorResponseCodeVectorStoreUnavailable ErrorResponseCode = "vector_store_unavailable"
	ErrorResponseCodeEmbeddingProviderError ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeEmbeddingQuotaExceeded ErrorResponseCode = "embedding_quota_exceeded"
	ErrorResponseCodeSearchUnavailable      ErrorResponseCode = "search_unavailable"
	ErrorResponseCodeInternalError          ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// SearchFilters is the optional filter object of a search request.
type SearchFilters struct {
	Tags          []string   `json:"tags,omitempty"`
	IsPublic      *bool      `json:"is_public,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	WorkspaceID   *string    `json:"workspace_id,omitempty"`
	MinUsage      *int       `json:"min_usage,omitempty"`
	AuthorID      *string    `json:"author_id,omitempty"`
}

// SearchWeights overrides the per-source RRF weights.
type SearchWeights struct {
	Lexical  float64 `json:"lexical"`
	Semantic float64 `json:"semantic"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query         string         `json:"query"`
	Mode          string         `json:"mode,omitempty"`
	Filters       *SearchFilters `json:"filters,omitempty"`
	Limit         *int           `json:"limit,omitempty"`
	Offset        *int           `json:"offset,omitempty"`
	IncludePublic *bool          `json:"include_public,omitempty"`
	Weights       *SearchWeights `json:"weights,omitempty"`
}

// ScoreBreakdown reports each source's local score and the fused score.
type ScoreBreakdown struct {
	Lexical  *float64 `json:"lexical,omitempty"`
	Semantic *float64 `json:"semantic,omitempty"`
	Combined float64  `json:"combined"`
}

// ItemSummary is the item shown next to a result.
type ItemSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Tags        []string  `json:"tags"`
	OwnerID     string    `json:"owner_id"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	IsPublic    bool      `json:"is_public"`
	UsageCount  int       `json:"usage_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchResultItem is one ranked result.
type SearchResultItem struct {
	ItemID         string         `json:"item_id"`
	Rank           int            `json:"rank"`
	CombinedScore  float64        `json:"combined_score"`
	ScoreBreakdown ScoreBreakdown `json:"score_breakdown"`
	Highlight      string         `json:"highlight,omitempty"`
	Item           ItemSummary    `json:"item"`
}

// SearchResponse is the body of POST /search and GET /prompts/{id}/similar.
type SearchResponse struct {
	Results    []SearchResultItem `json:"results"`
	Total      int                `json:"total"`
	Query      string             `json:"query,omitempty"`
	Mode       string             `json:"mode"`
	DurationMs int64              `json:"duration_ms"`
	Degraded   bool               `json:"degraded"`
	Sources    []string           `json:"sources"`
}

// SuggestParams are the query parameters of GET /suggest.
type SuggestParams struct {
	Q              string `json:"q"`
	Limit          *int   `json:"limit,omitempty"`
	IncludeHistory *bool  `json:"include_history,omitempty"`
	IncludePublic  *bool  `json:"include_public,omitempty"`
}

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

// SuggestResponse is the body of GET /suggest.
type SuggestResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// SimilarParams are the query parameters of GET /prompts/{id}/similar.
type SimilarParams struct {
	Threshold     *float64 `json:"threshold,omitempty"`
	Limit         *int     `json:"limit,omitempty"`
	IncludePublic *bool    `json:"include_public,omitempty"`
}

// UpsertItemRequest is the body of PUT /prompts/{id}.
type UpsertItemRequest struct {
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Tags        []string   `json:"tags,omitempty"`
	OwnerID     string     `json:"owner_id"`
	WorkspaceID string     `json:"workspace_id,omitempty"`
	IsPublic    bool       `json:"is_public"`
	UsageCount  int        `json:"usage_count"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// UpsertItemResponse acknowledges an upsert.
type UpsertItemResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

// BatchUpsertItem is one entry of POST /prompts/batch.
type BatchUpsertItem struct {
	ID string `json:"id"`
	UpsertItemRequest
}

// BatchUpsertRequest is the body of POST /prompts/batch.
type BatchUpsertRequest struct {
	Items []BatchUpsertItem `json:"items"`
}

// BatchDeleteRequest is the body of POST /prompts/batch/delete.
type BatchDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BatchResultItem is one per-item outcome.
type BatchResultItem struct {
	ID     string            `json:"id"`
	Status string            `json:"status"`
	Error  *BatchResultError `json:"error,omitempty"`
}

// BatchResultError describes a failed item.
type BatchResultError struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// BatchResponse is the body of the batch endpoints.
type BatchResponse struct {
	Items     []BatchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Budget any               `json:"budget,omitempty"`
}
