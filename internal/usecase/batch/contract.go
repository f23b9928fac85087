package batch

import (
	"context"

	"github.com/kailas-cloud/promptdex/internal/domain/item"
)

// ItemWriter writes items in bulk and reports which already exist.
type ItemWriter interface {
	GetMany(ctx context.Context, ids []string) ([]item.Item, error)
	UpsertMany(ctx context.Context, items []item.Item) error
}

// Indexer maintains embedding records for stored items.
type Indexer interface {
	EmbedItems(ctx context.Context, items []item.Item) []error
	SyncAccess(ctx context.Context, it *item.Item) error
	Delete(ctx context.Context, id string) error
}
