package catalog

import (
	"context"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
)

// ItemRepository is the searchable item mirror.
type ItemRepository interface {
	Get(ctx context.Context, id string) (item.Item, error)
	Upsert(ctx context.Context, it *item.Item) error
	Delete(ctx context.Context, id string) error
}

// VectorRepository stores embedding records.
type VectorRepository interface {
	Put(ctx context.Context, rec domain.EmbeddingRecord, it *item.Item) error
	SyncAccess(ctx context.Context, it *item.Item, model string) error
	DeleteItem(ctx context.Context, itemID string) error
}

// Embedder vectorizes document text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Truncator cuts text to the model context window.
type Truncator interface {
	Truncate(text string) (string, bool)
}
