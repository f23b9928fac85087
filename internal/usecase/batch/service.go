package batch

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/promptdex/internal/domain"
	dombatch "github.com/kailas-cloud/promptdex/internal/domain/batch"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
)

// MaxBatchSize is the maximum number of items per batch request.
const MaxBatchSize = 100

// Service handles batch index sync with per-item error reporting.
type Service struct {
	items        ItemWriter
	indexer      Indexer
	maxBatchSize int
}

// New creates a batch service.
func New(items ItemWriter, indexer Indexer) *Service {
	return &Service{items: items, indexer: indexer, maxBatchSize: MaxBatchSize}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Upsert stores items in one round-trip and embeds them in one provider call.
// An embedding failure marks the affected items as failed; they stay lexically searchable.
func (s *Service) Upsert(ctx context.Context, items []item.Item, embed bool) []dombatch.Result {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID()
	}
	if err := s.checkSize(len(items)); err != nil {
		return failAll(ids, err)
	}
	if len(items) == 0 {
		return nil
	}

	existing, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return failAll(ids, fmt.Errorf("lookup items: %w", err))
	}
	known := make(map[string]bool, len(existing))
	for i := range existing {
		known[existing[i].ID()] = true
	}

	if err := s.items.UpsertMany(ctx, items); err != nil {
		return failAll(ids, fmt.Errorf("batch upsert: %w", err))
	}

	errs := make([]error, len(items))
	if embed {
		errs = s.indexer.EmbedItems(ctx, items)
	} else {
		for i := range items {
			errs[i] = s.indexer.SyncAccess(ctx, &items[i])
		}
	}

	results := make([]dombatch.Result, len(items))
	for i, id := range ids {
		if errs[i] != nil {
			results[i] = dombatch.NewError(id, errs[i])
			continue
		}
		results[i] = dombatch.NewUpserted(id, !known[id])
	}
	return results
}

// Delete removes items and their embedding records by ID.
func (s *Service) Delete(ctx context.Context, ids []string) []dombatch.Result {
	if err := s.checkSize(len(ids)); err != nil {
		return failAll(ids, err)
	}
	results := make([]dombatch.Result, len(ids))
	for i, id := range ids {
		if err := s.indexer.Delete(ctx, id); err != nil {
			results[i] = dombatch.NewError(id, fmt.Errorf("delete: %w", err))
			continue
		}
		results[i] = dombatch.NewDeleted(id)
	}
	return results
}

func (s *Service) checkSize(n int) error {
	if n > s.maxBatchSize {
		return domain.Invalid("items", fmt.Sprintf("batch size exceeds %d", s.maxBatchSize))
	}
	return nil
}

func failAll(ids []string, err error) []dombatch.Result {
	results := make([]dombatch.Result, len(ids))
	for i, id := range ids {
		results[i] = dombatch.NewError(id, err)
	}
	return results
}
