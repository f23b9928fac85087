package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
	"github.com/kailas-cloud/promptdex/internal/repository/schema"
)

// Vectors stores one pgvector row per (item, model).
// Access fields are joined from items, so no copy is kept.
type Vectors struct {
	db dbtx
}

// NewVectors creates the vector repository.
func NewVectors(db dbtx) *Vectors {
	return &Vectors{db: db}
}

// EnsureIndex creates a partial HNSW index for one model at a fixed dimension.
func (r *Vectors) EnsureIndex(ctx context.Context, model string, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("vector index for %s: dimensions must be positive", model)
	}
	sql := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON item_embeddings USING hnsw ((embedding::vector(%d)) vector_cosine_ops) WHERE model = %s`,
		pgx.Identifier{"item_embeddings_" + strings.ToLower(schema.ModelSlug(model)) + "_hnsw"}.Sanitize(),
		dims, quoteLiteral(model),
	)
	if _, err := r.db.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create vector index for %s: %w", model, err)
	}
	return nil
}

// Put stores an embedding record, replacing any previous vector for (item, model).
func (r *Vectors) Put(ctx context.Context, rec domain.EmbeddingRecord, it *item.Item) error {
	if rec.ItemID != it.ID() {
		return fmt.Errorf("embedding record %s does not belong to item %s", rec.ItemID, it.ID())
	}
	_, err := r.db.Exec(ctx, `INSERT INTO item_embeddings (item_id, model, embedding) VALUES ($1, $2, $3)
ON CONFLICT (item_id, model) DO UPDATE SET embedding = EXCLUDED.embedding`,
		rec.ItemID, rec.Model, pgvector.NewVector(rec.Vector))
	if err != nil {
		return fmt.Errorf("put vector %s: %w", rec.ItemID, err)
	}
	return nil
}

// SyncAccess is a no-op: access is read from items at query time.
func (r *Vectors) SyncAccess(context.Context, *item.Item, string) error { return nil }

// Has reports whether an item has a record for model.
func (r *Vectors) Has(ctx context.Context, itemID, model string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM item_embeddings WHERE item_id = $1 AND model = $2)`,
		itemID, model).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return ok, nil
}

// Get returns one stored vector or domain.ErrNotFound.
func (r *Vectors) Get(ctx context.Context, itemID, model string) ([]float32, error) {
	var v pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT embedding FROM item_embeddings WHERE item_id = $1 AND model = $2`,
		itemID, model).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return v.Slice(), nil
}

// GetMany returns stored vectors keyed by item id. Items without a record are omitted.
func (r *Vectors) GetMany(ctx context.Context, itemIDs []string, model string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT item_id, embedding FROM item_embeddings WHERE model = $1 AND item_id = ANY($2)`,
		model, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var v pgvector.Vector
		if err := rows.Scan(&id, &v); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
		}
		out[id] = v.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return out, nil
}

// Nearest returns the k records closest to vec among items visible under scope that pass f.
// Scores are 1 - cosine distance, in [-1,1]. Records of another dimension never match.
func (r *Vectors) Nearest(
	ctx context.Context, vec []float32, model string, f filter.Filters, scope access.Scope, k int,
) ([]result.Hit, error) {
	if scope.IsEmpty() || k <= 0 || len(vec) == 0 {
		return nil, nil
	}
	w := newWhere(pgvector.NewVector(vec), model)
	w.add("e.model = $2")
	w.add("vector_dims(e.embedding) = ?", len(vec))
	w.access(scope)
	w.filters(f)
	// The cast matches the per-model HNSW expression index. Rows of another dimension are
	// already filtered out by vector_dims, so the cast never sees them.
	dims := strconv.Itoa(len(vec))
	dist := "(e.embedding::vector(" + dims + ") <=> $1::vector(" + dims + "))"
	sql := `SELECT e.item_id, 1 - ` + dist + ` AS score
FROM item_embeddings e JOIN items i ON i.id = e.item_id
WHERE ` + w.String() + `
ORDER BY ` + dist + `, e.item_id LIMIT ` + w.arg(k)

	rows, err := r.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (result.Hit, error) {
		var h result.Hit
		err := row.Scan(&h.ItemID, &h.Score)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return hits, nil
}

// DeleteItem removes every record of an item across models.
func (r *Vectors) DeleteItem(ctx context.Context, itemID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM item_embeddings WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("delete vectors %s: %w", itemID, err)
	}
	return nil
}

// quoteLiteral renders s as a SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
