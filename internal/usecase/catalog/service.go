// Package catalog keeps the search indexes in sync with the entity store.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
)

// Service upserts and deletes items and their embedding records.
type Service struct {
	items     ItemRepository
	vectors   VectorRepository
	embed     Embedder
	truncator Truncator
	model     string
	dims      int
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTruncator cuts document text before embedding.
func WithTruncator(t Truncator) Option {
	return func(s *Service) { s.truncator = t }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a catalog service. dims <= 0 skips the dimension check.
func New(items ItemRepository, vectors VectorRepository, embed Embedder, model string, dims int, opts ...Option) *Service {
	s := &Service{
		items:   items,
		vectors: vectors,
		embed:   embed,
		model:   model,
		dims:    dims,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Model returns the embedding model records are written for.
func (s *Service) Model() string { return s.model }

// Upsert stores an item and, when embed is set, its embedding. Returns true if the item was new.
// Without embed, an existing record only gets its access fields refreshed.
// The item stays lexically searchable when embedding fails; backfill repairs the vector later.
func (s *Service) Upsert(ctx context.Context, it *item.Item, embed bool) (bool, error) {
	created := false
	if _, err := s.items.Get(ctx, it.ID()); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return false, fmt.Errorf("lookup item: %w", err)
		}
		created = true
	}

	if err := s.items.Upsert(ctx, it); err != nil {
		return false, fmt.Errorf("upsert item: %w", err)
	}

	if !embed {
		if err := s.vectors.SyncAccess(ctx, it, s.model); err != nil {
			return created, fmt.Errorf("sync vector access: %w", err)
		}
		return created, nil
	}

	res, err := s.embed.Embed(ctx, s.text(it))
	if err != nil {
		return created, fmt.Errorf("vectorize item: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	if err := s.put(ctx, it, res.Embedding); err != nil {
		return created, err
	}
	return created, nil
}

// EmbedItems vectorizes items in one provider call and stores their records.
// The returned slice holds one error (or nil) per item.
func (s *Service) EmbedItems(ctx context.Context, items []item.Item) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}
	texts := make([]string, len(items))
	for i := range items {
		texts[i] = s.text(&items[i])
	}

	var res domain.BatchEmbeddingResult
	var err error
	if be, ok := s.embed.(domain.BatchEmbedder); ok {
		res, err = be.BatchEmbed(ctx, texts)
	} else {
		res, err = domain.BatchFallback(ctx, s.embed, texts)
	}
	if err == nil && len(res.Embeddings) != len(items) {
		err = fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrEmbeddingProviderError, len(res.Embeddings), len(items))
	}
	if err != nil {
		err = fmt.Errorf("vectorize batch: %w", err)
		for i := range errs {
			errs[i] = err
		}
		return errs
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	for i := range items {
		errs[i] = s.put(ctx, &items[i], res.Embeddings[i])
	}
	return errs
}

// SyncAccess refreshes the access fields of an item's existing record.
func (s *Service) SyncAccess(ctx context.Context, it *item.Item) error {
	if err := s.vectors.SyncAccess(ctx, it, s.model); err != nil {
		return fmt.Errorf("sync vector access: %w", err)
	}
	return nil
}

// Delete removes an item and every embedding record it has.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.vectors.DeleteItem(ctx, id); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (s *Service) text(it *item.Item) string {
	text := it.EmbeddingText()
	if s.truncator == nil {
		return text
	}
	cut, truncated := s.truncator.Truncate(text)
	if truncated {
		s.logger.Debug("Embedding text truncated", zap.String("item_id", it.ID()))
	}
	return cut
}

func (s *Service) put(ctx context.Context, it *item.Item, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingProviderError)
	}
	if s.dims > 0 && len(vec) != s.dims {
		return fmt.Errorf("%w: vector dimension mismatch: got %d, want %d",
			domain.ErrEmbeddingProviderError, len(vec), s.dims)
	}
	rec := domain.EmbeddingRecord{ItemID: it.ID(), Model: s.model, Vector: vec}
	if err := s.vectors.Put(ctx, rec, it); err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}
