package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/kailas-cloud/promptdex/internal/db"
	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
	"github.com/kailas-cloud/promptdex/internal/repository/schema"
)

const fetchBatch = 100

// store is the consumer interface for embedding records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo stores one vector hash per (item, model) and answers KNN queries.
// Each hash carries a copy of the item's access fields so KNN is pre-filtered.
type Repo struct {
	store store
	opts  schema.VectorIndexOptions
}

// New creates a vector repository.
func New(s store, opts schema.VectorIndexOptions) *Repo {
	return &Repo{store: s, opts: opts}
}

// EnsureIndex creates the KNN index for a model.
func (r *Repo) EnsureIndex(ctx context.Context, model string, dims int) error {
	def, err := schema.VectorIndexDef(model, dims, r.opts)
	if err != nil {
		return fmt.Errorf("vector index definition: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create vector index %s: %w", def.Name, err)
	}
	return nil
}

// Put stores an embedding record, replacing any previous vector for (item, model).
func (r *Repo) Put(ctx context.Context, rec domain.EmbeddingRecord, it *item.Item) error {
	if rec.ItemID != it.ID() {
		return fmt.Errorf("embedding record %s does not belong to item %s", rec.ItemID, it.ID())
	}
	fields := schema.AccessFields(it)
	fields[schema.FieldVector] = vectorToBytes(rec.Vector)
	if err := r.store.HSet(ctx, schema.VectorKey(rec.Model, rec.ItemID), fields); err != nil {
		return fmt.Errorf("hset vector %s: %w", rec.ItemID, err)
	}
	return nil
}

// SyncAccess refreshes the access fields of an existing record after the item changed.
// Missing records are left absent.
func (r *Repo) SyncAccess(ctx context.Context, it *item.Item, model string) error {
	key := schema.VectorKey(model, it.ID())
	ok, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("exists vector %s: %w", it.ID(), err)
	}
	if !ok {
		return nil
	}
	if err := r.store.HSet(ctx, key, schema.AccessFields(it)); err != nil {
		return fmt.Errorf("hset vector %s: %w", it.ID(), err)
	}
	return nil
}

// Has reports whether an item has a record for model.
func (r *Repo) Has(ctx context.Context, itemID, model string) (bool, error) {
	ok, err := r.store.Exists(ctx, schema.VectorKey(model, itemID))
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return ok, nil
}

// Get returns one stored vector or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, itemID, model string) ([]float32, error) {
	m, err := r.store.HGetAll(ctx, schema.VectorKey(model, itemID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	v := bytesToVector(m[schema.FieldVector])
	if len(v) == 0 {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

// GetMany returns stored vectors keyed by item id. Items without a record are omitted.
func (r *Repo) GetMany(ctx context.Context, itemIDs []string, model string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(itemIDs))
	for chunk := range slices.Chunk(itemIDs, fetchBatch) {
		keys := make([]string, len(chunk))
		for i, id := range chunk {
			keys[i] = schema.VectorKey(model, id)
		}
		maps, err := r.store.HGetAllMulti(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
		}
		for i, m := range maps {
			if v := bytesToVector(m[schema.FieldVector]); len(v) > 0 {
				out[chunk[i]] = v
			}
		}
	}
	return out, nil
}

// Nearest returns the k records closest to vec among items visible under scope that pass f.
// Scores are cosine similarities in [-1,1], descending.
func (r *Repo) Nearest(
	ctx context.Context, vec []float32, model string, f filter.Filters, scope access.Scope, k int,
) ([]result.Hit, error) {
	if scope.IsEmpty() || k <= 0 {
		return nil, nil
	}
	prefilter := schema.Prefilter(f, scope)
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    schema.VectorIndex(model),
		Filter:       prefilter,
		VectorField:  schema.FieldVector,
		Vector:       vec,
		K:            k,
		ReturnFields: []string{schema.FieldItemID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}

	prefix := schema.VectorPrefix(model)
	hits := make([]result.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := e.Fields[schema.FieldItemID]
		if id == "" && len(e.Key) > len(prefix) {
			id = e.Key[len(prefix):]
		}
		hits = append(hits, result.Hit{ItemID: id, Score: e.Score})
	}
	slices.SortStableFunc(hits, func(a, b result.Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return hits, nil
}

// DeleteItem removes every record of an item across models.
func (r *Repo) DeleteItem(ctx context.Context, itemID string) error {
	keys, err := r.store.Scan(ctx, schema.VectorPatternForItem(itemID))
	if err != nil {
		return fmt.Errorf("scan vectors %s: %w", itemID, err)
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("del vectors %s: %w", itemID, err)
	}
	return nil
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
