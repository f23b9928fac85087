package search

import (
	"context"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/history"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
)

// ItemStore is the entity mirror: candidate listing, text index and item loading.
type ItemStore interface {
	Get(ctx context.Context, id string) (item.Item, error)
	GetMany(ctx context.Context, ids []string) ([]item.Item, error)
	Candidates(ctx context.Context, f filter.Filters, scope access.Scope, limit int) ([]item.Item, error)
	Lexical(ctx context.Context, query string, f filter.Filters, scope access.Scope, limit int) ([]result.Hit, error)
}

// VectorStore reads embedding records of one model.
type VectorStore interface {
	Get(ctx context.Context, itemID, model string) ([]float32, error)
	GetMany(ctx context.Context, itemIDs []string, model string) (map[string][]float32, error)
	Nearest(
		ctx context.Context, vec []float32, model string, f filter.Filters, scope access.Scope, k int,
	) ([]result.Hit, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// HistoryRecorder persists search history entries.
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Submitter runs detached tasks (an ants pool).
type Submitter interface {
	Submit(task func()) error
}
