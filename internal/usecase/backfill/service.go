// Package backfill embeds items that have no record for the configured model.
package backfill

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/domain/item"
)

// Defaults for Config.
const (
	DefaultWorkers   = 4
	DefaultBatchSize = 32
)

// ItemReader lists and loads items.
type ItemReader interface {
	IDs(ctx context.Context) ([]string, error)
	GetMany(ctx context.Context, ids []string) ([]item.Item, error)
}

// VectorChecker reports whether an item already has a record.
type VectorChecker interface {
	Has(ctx context.Context, itemID, model string) (bool, error)
}

// Indexer embeds and stores items.
type Indexer interface {
	Model() string
	EmbedItems(ctx context.Context, items []item.Item) []error
}

// Config tunes the backfill.
type Config struct {
	Workers   int
	BatchSize int
	DryRun    bool
}

// Stats summarizes a run.
type Stats struct {
	Scanned  int
	Missing  int
	Embedded int
	Failed   int
}

// Service finds and embeds items without a vector.
type Service struct {
	items   ItemReader
	vectors VectorChecker
	indexer Indexer
	cfg     Config
	logger  *zap.Logger
}

// New creates a backfill service.
func New(items ItemReader, vectors VectorChecker, indexer Indexer, cfg Config, logger *zap.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{items: items, vectors: vectors, indexer: indexer, cfg: cfg, logger: logger}
}

// Run embeds every item missing a record, batchSize items per provider call on a bounded pool.
// Per-batch failures are counted and logged; Run only fails when listing or pool setup fails.
func (s *Service) Run(ctx context.Context) (Stats, error) {
	model := s.indexer.Model()
	ids, err := s.items.IDs(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list items: %w", err)
	}
	stats := Stats{Scanned: len(ids)}

	var missing []string
	for _, id := range ids {
		ok, err := s.vectors.Has(ctx, id, model)
		if err != nil {
			return stats, fmt.Errorf("check vector %s: %w", id, err)
		}
		if !ok {
			missing = append(missing, id)
		}
	}
	stats.Missing = len(missing)
	s.logger.Info("Backfill scan complete",
		zap.String("model", model), zap.Int("scanned", stats.Scanned), zap.Int("missing", stats.Missing))
	if s.cfg.DryRun || len(missing) == 0 {
		return stats, nil
	}

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return stats, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		embedded atomic.Int64
		failed   atomic.Int64
	)
	for chunk := range slices.Chunk(missing, s.cfg.BatchSize) {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			ok, bad := s.embedChunk(ctx, chunk)
			embedded.Add(int64(ok))
			failed.Add(int64(bad))
		})
		if err != nil {
			wg.Done()
			failed.Add(int64(len(chunk)))
			s.logger.Error("Backfill submit failed", zap.Error(err))
		}
	}
	wg.Wait()

	stats.Embedded = int(embedded.Load())
	stats.Failed = int(failed.Load())
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("backfill interrupted: %w", err)
	}
	return stats, nil
}

func (s *Service) embedChunk(ctx context.Context, ids []string) (ok, failed int) {
	items, err := s.items.GetMany(ctx, ids)
	if err != nil {
		s.logger.Error("Backfill load failed", zap.Int("items", len(ids)), zap.Error(err))
		return 0, len(ids)
	}
	// items deleted since the scan are neither embedded nor failed
	for i, err := range s.indexer.EmbedItems(ctx, items) {
		if err != nil {
			failed++
			s.logger.Warn("Backfill embed failed", zap.String("item_id", items[i].ID()), zap.Error(err))
			continue
		}
		ok++
	}
	return ok, failed
}
