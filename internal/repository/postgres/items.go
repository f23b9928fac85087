package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
	"github.com/kailas-cloud/promptdex/internal/domain/suggest"
)

const itemColumns = `i.id, i.title, i.body, i.tags, i.owner_id, i.workspace_id, i.is_public, i.usage_count, i.created_at`

const upsertItemSQL = `INSERT INTO items (id, title, body, tags, owner_id, workspace_id, is_public, usage_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	body = EXCLUDED.body,
	tags = EXCLUDED.tags,
	owner_id = EXCLUDED.owner_id,
	workspace_id = EXCLUDED.workspace_id,
	is_public = EXCLUDED.is_public,
	usage_count = EXCLUDED.usage_count,
	created_at = EXCLUDED.created_at`

// Items stores items in the items table.
type Items struct {
	db dbtx
}

// NewItems creates the item repository.
func NewItems(db dbtx) *Items {
	return &Items{db: db}
}

// EnsureIndex is a no-op: indexes are created by Migrate.
func (r *Items) EnsureIndex(context.Context) error { return nil }

// Upsert stores an item.
func (r *Items) Upsert(ctx context.Context, it *item.Item) error {
	if _, err := r.db.Exec(ctx, upsertItemSQL, itemArgs(it)...); err != nil {
		return fmt.Errorf("upsert item %s: %w", it.ID(), err)
	}
	return nil
}

// UpsertMany stores items in one batch.
func (r *Items) UpsertMany(ctx context.Context, items []item.Item) error {
	if len(items) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for i := range items {
		b.Queue(upsertItemSQL, itemArgs(&items[i])...)
	}
	br := r.db.SendBatch(ctx, b)
	defer br.Close()
	for i := range items {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert item %s: %w", items[i].ID(), err)
		}
	}
	return nil
}

func itemArgs(it *item.Item) []any {
	tags := it.Tags()
	if tags == nil {
		tags = []string{}
	}
	return []any{
		it.ID(), it.Title(), it.Body(), tags, it.OwnerID(), it.WorkspaceID(),
		it.IsPublic(), it.UsageCount(), it.CreatedAt(),
	}
}

// Delete removes an item and, by cascade, its embeddings.
func (r *Items) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

// Get returns one item or domain.ErrNotFound.
func (r *Items) Get(ctx context.Context, id string) (item.Item, error) {
	row := r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = $1`, id)
	it, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return item.Item{}, domain.ErrNotFound
	}
	if err != nil {
		return item.Item{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return it, nil
}

// GetMany returns the items that exist, in the order of ids.
func (r *Items) GetMany(ctx context.Context, ids []string) ([]item.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := r.query(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	byID := make(map[string]item.Item, len(items))
	for _, it := range items {
		byID[it.ID()] = it
	}
	out := make([]item.Item, 0, len(items))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// IDs lists every stored item id.
func (r *Items) IDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list item ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list item ids: %w", err)
	}
	return ids, nil
}

// Candidates returns up to limit items visible under scope that pass the filters, newest first.
func (r *Items) Candidates(ctx context.Context, f filter.Filters, scope access.Scope, limit int) ([]item.Item, error) {
	if scope.IsEmpty() || limit <= 0 {
		return nil, nil
	}
	w := newWhere()
	w.access(scope)
	w.filters(f)
	sql := `SELECT ` + itemColumns + ` FROM items i WHERE ` + w.String() +
		` ORDER BY i.created_at DESC, i.id LIMIT ` + w.arg(limit)
	items, err := r.query(ctx, sql, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return items, nil
}

// Lexical ranks items with ts_rank_cd over the weighted search_vector (title A, body B).
// Scores are raw; the caller normalizes them.
func (r *Items) Lexical(
	ctx context.Context, query string, f filter.Filters, scope access.Scope, limit int,
) ([]result.Hit, error) {
	if scope.IsEmpty() || limit <= 0 {
		return nil, nil
	}
	w := newWhere(query)
	w.add("i.search_vector @@ q")
	w.access(scope)
	w.filters(f)
	sql := `SELECT i.id, ts_rank_cd(i.search_vector, q) AS score
FROM items i, websearch_to_tsquery('` + textSearchConfig + `', $1) q
WHERE ` + w.String() + `
ORDER BY score DESC, i.id LIMIT ` + w.arg(limit)

	rows, err := r.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (result.Hit, error) {
		var h result.Hit
		var score float32
		err := row.Scan(&h.ItemID, &score)
		h.Score = float64(score)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return hits, nil
}

// FuzzyTitles matches titles by pg_trgm similarity above floor or by case-insensitive substring.
func (r *Items) FuzzyTitles(
	ctx context.Context, prefix string, scope access.Scope, floor float64, limit int,
) ([]suggest.Candidate, error) {
	if scope.IsEmpty() || strings.TrimSpace(prefix) == "" || limit <= 0 {
		return nil, nil
	}
	w := newWhere(prefix)
	w.add("(similarity(i.title, $1) > ? OR i.title ILIKE ?)", floor, containsPattern(prefix))
	w.access(scope)
	sql := `SELECT DISTINCT ON (lower(i.title)) i.title, similarity(i.title, $1) AS sim
FROM items i WHERE ` + w.String() + `
ORDER BY lower(i.title), sim DESC`
	sql = `SELECT title, sim FROM (` + sql + `) t ORDER BY sim DESC, lower(title) LIMIT ` + w.arg(limit)

	rows, err := r.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (suggest.Candidate, error) {
		var c suggest.Candidate
		var sim float32
		err := row.Scan(&c.Text, &sim)
		c.Source = suggest.SourceTitle
		c.Similarity = float64(sim)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return out, nil
}

// PopularTags counts tags containing prefix among accessible items.
func (r *Items) PopularTags(ctx context.Context, prefix string, scope access.Scope, limit int) ([]suggest.TagCount, error) {
	if scope.IsEmpty() || limit <= 0 {
		return nil, nil
	}
	w := newWhere()
	w.access(scope)
	w.add("t.tag ILIKE ?", containsPattern(strings.ToLower(prefix)))
	sql := `SELECT t.tag, count(*) AS n
FROM items i, unnest(i.tags) AS t(tag)
WHERE ` + w.String() + `
GROUP BY t.tag ORDER BY n DESC, t.tag LIMIT ` + w.arg(limit)

	rows, err := r.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, fmt.Errorf("count tags: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (suggest.TagCount, error) {
		var tc suggest.TagCount
		var n int64
		err := row.Scan(&tc.Tag, &n)
		tc.Count = int(n)
		return tc, err
	})
	if err != nil {
		return nil, fmt.Errorf("count tags: %w", err)
	}
	return out, nil
}

func (r *Items) query(ctx context.Context, sql string, args ...any) ([]item.Item, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (item.Item, error) {
		return scanItem(row)
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap
	}
	return items, nil
}

func scanItem(row pgx.Row) (item.Item, error) {
	var (
		a     item.Attrs
		usage int32
		at    time.Time
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Body, &a.Tags, &a.OwnerID, &a.WorkspaceID,
		&a.IsPublic, &usage, &at); err != nil {
		return item.Item{}, err //nolint:wrapcheck // callers wrap
	}
	a.UsageCount = int(usage)
	a.CreatedAt = at.UTC()
	return item.Reconstruct(a), nil
}
