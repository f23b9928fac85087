package item

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/promptdex/internal/db"
	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
	domitem "github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
	"github.com/kailas-cloud/promptdex/internal/domain/suggest"
	"github.com/kailas-cloud/promptdex/internal/repository/schema"
)

// fetchBatch bounds HGETALL pipelines on the scan path.
const fetchBatch = 100

// store is the consumer interface for items (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SupportsTextSearch(ctx context.Context) bool
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	Aggregate(ctx context.Context, index, query string, args ...string) ([]map[string]string, error)
}

// Repo mirrors items into hashes and answers candidate, lexical and autocomplete queries.
// Without text search (Valkey) candidates come from SCAN and are filtered in memory.
type Repo struct {
	store        store
	candidateCap int
}

// New creates an item repository. candidateCap bounds scan-path and fuzzy-title candidate pools.
func New(s store, candidateCap int) *Repo {
	if candidateCap <= 0 {
		candidateCap = 1000
	}
	return &Repo{store: s, candidateCap: candidateCap}
}

// EnsureIndex creates the full-text index when the engine supports it.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	if !r.store.SupportsTextSearch(ctx) {
		return nil
	}
	if err := r.store.CreateIndex(ctx, schema.ItemsIndexDef()); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create items index: %w", err)
	}
	return nil
}

// Upsert stores an item.
func (r *Repo) Upsert(ctx context.Context, it *domitem.Item) error {
	if err := r.store.HSet(ctx, schema.ItemKey(it.ID()), schema.EncodeItem(it)); err != nil {
		return fmt.Errorf("hset item %s: %w", it.ID(), err)
	}
	return nil
}

// UpsertMany stores items in one round-trip.
func (r *Repo) UpsertMany(ctx context.Context, items []domitem.Item) error {
	batch := make([]db.HashSetItem, len(items))
	for i := range items {
		batch[i] = db.HashSetItem{Key: schema.ItemKey(items[i].ID()), Fields: schema.EncodeItem(&items[i])}
	}
	if err := r.store.HSetMulti(ctx, batch); err != nil {
		return fmt.Errorf("hset items: %w", err)
	}
	return nil
}

// Delete removes an item. Deleting a missing item is not an error.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, schema.ItemKey(id)); err != nil {
		return fmt.Errorf("del item %s: %w", id, err)
	}
	return nil
}

// Get returns one item or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, id string) (domitem.Item, error) {
	m, err := r.store.HGetAll(ctx, schema.ItemKey(id))
	if err != nil {
		return domitem.Item{}, fmt.Errorf("hgetall item %s: %w", id, err)
	}
	it, ok := schema.DecodeItem(id, m)
	if !ok {
		return domitem.Item{}, domain.ErrNotFound
	}
	return it, nil
}

// GetMany returns the items that exist, in the order of ids.
func (r *Repo) GetMany(ctx context.Context, ids []string) ([]domitem.Item, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = schema.ItemKey(id)
	}
	return r.load(ctx, keys)
}

// IDs lists every stored item id.
func (r *Repo) IDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, schema.ItemPattern())
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = schema.ItemIDFromKey(k)
	}
	slices.Sort(ids)
	return ids, nil
}

// Candidates returns up to limit items visible under scope that pass the filters.
func (r *Repo) Candidates(ctx context.Context, f filter.Filters, scope access.Scope, limit int) ([]domitem.Item, error) {
	if scope.IsEmpty() || limit <= 0 {
		return nil, nil
	}
	if !r.store.SupportsTextSearch(ctx) {
		return r.scanCandidates(ctx, f, scope, limit)
	}

	sr, err := r.store.SearchList(ctx, schema.ItemsIndex, schema.Prefilter(f, scope), 0, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	out := make([]domitem.Item, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		if it, ok := schema.DecodeItem(schema.ItemIDFromKey(e.Key), e.Fields); ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// scanCandidates walks every item hash and applies access and filters in memory.
// Newest items win when the pool exceeds limit.
func (r *Repo) scanCandidates(
	ctx context.Context, f filter.Filters, scope access.Scope, limit int,
) ([]domitem.Item, error) {
	keys, err := r.store.Scan(ctx, schema.ItemPattern())
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	all, err := r.load(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for i := range all {
		if scope.Allows(&all[i]) && f.Matches(&all[i]) {
			out = append(out, all[i])
		}
	}
	slices.SortFunc(out, func(a, b domitem.Item) int {
		if c := b.CreatedAt().Compare(a.CreatedAt()); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repo) load(ctx context.Context, keys []string) ([]domitem.Item, error) {
	out := make([]domitem.Item, 0, len(keys))
	for chunk := range slices.Chunk(keys, fetchBatch) {
		maps, err := r.store.HGetAllMulti(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("load items: %w", err)
		}
		for i, m := range maps {
			if it, ok := schema.DecodeItem(schema.ItemIDFromKey(chunk[i]), m); ok {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

// Lexical runs a BM25 query over title and body, pre-filtered by access and filters.
// Scores are raw; the caller normalizes them.
func (r *Repo) Lexical(
	ctx context.Context, query string, f filter.Filters, scope access.Scope, limit int,
) ([]result.Hit, error) {
	if scope.IsEmpty() {
		return nil, nil
	}
	if !r.store.SupportsTextSearch(ctx) {
		return nil, fmt.Errorf("%w: text search unsupported by backend", domain.ErrIndexUnavailable)
	}

	prefilter := schema.Prefilter(f, scope)
	if prefilter == db.MatchAll {
		prefilter = ""
	}
	sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    schema.ItemsIndex,
		Query:        query,
		Fields:       []string{schema.FieldTitle, schema.FieldBody},
		Filter:       prefilter,
		Limit:        limit,
		ReturnFields: []string{schema.FieldItemID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}

	hits := make([]result.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		hits = append(hits, result.Hit{ItemID: schema.ItemIDFromKey(e.Key), Score: e.Score})
	}
	return hits, nil
}

// FuzzyTitles returns titles matching prefix by trigram similarity above floor or by substring.
// The text index narrows the pool by word prefixes and Levenshtein-1 terms; similarity is computed locally.
func (r *Repo) FuzzyTitles(
	ctx context.Context, prefix string, scope access.Scope, floor float64, limit int,
) ([]suggest.Candidate, error) {
	if scope.IsEmpty() || strings.TrimSpace(prefix) == "" {
		return nil, nil
	}
	if !r.store.SupportsTextSearch(ctx) {
		return nil, fmt.Errorf("%w: fuzzy matching unsupported by backend", domain.ErrIndexUnavailable)
	}

	q := db.And(schema.AccessClause(scope), titleClause(prefix))
	sr, err := r.store.SearchList(ctx, schema.ItemsIndex, q, 0, r.candidateCap, []string{schema.FieldTitle})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}

	out := make([]suggest.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		title := e.Fields[schema.FieldTitle]
		sim := suggest.Similarity(prefix, title)
		if sim > floor || suggest.ContainsFold(title, prefix) {
			out = append(out, suggest.Candidate{Text: title, Source: suggest.SourceTitle, Similarity: sim})
		}
	}
	suggest.SortBySimilarity(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// titleClause matches any word of prefix as a prefix term, plus a fuzzy term for longer words.
func titleClause(prefix string) string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(prefix)) {
		esc := db.EscapeQuery(w)
		switch n := len([]rune(w)); {
		case n >= 3:
			terms = append(terms, esc+"*", "%"+esc+"%")
		case n == 2:
			terms = append(terms, esc+"*")
		}
	}
	if len(terms) == 0 {
		return ""
	}
	return "@" + schema.FieldTitle + ":(" + strings.Join(terms, "|") + ")"
}

// PopularTags returns the most frequent tags containing prefix among accessible items.
func (r *Repo) PopularTags(ctx context.Context, prefix string, scope access.Scope, limit int) ([]suggest.TagCount, error) {
	if scope.IsEmpty() || limit <= 0 {
		return nil, nil
	}
	if !r.store.SupportsTextSearch(ctx) {
		items, err := r.scanCandidates(ctx, filter.Filters{}, scope, r.candidateCap)
		if err != nil {
			return nil, err
		}
		return suggest.CountTags(items, prefix, limit), nil
	}

	rows, err := r.store.Aggregate(ctx, schema.ItemsIndex, schema.Prefilter(filter.Filters{}, scope),
		"LOAD", "1", "@"+schema.FieldTags,
		"APPLY", "split(@"+schema.FieldTags+")", "AS", "tag",
		"GROUPBY", "1", "@tag",
		"REDUCE", "COUNT", "0", "AS", "count",
		"SORTBY", "2", "@count", "DESC",
		"MAX", strconv.Itoa(r.candidateCap),
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate tags: %w", err)
	}

	out := make([]suggest.TagCount, 0, limit)
	for _, row := range rows {
		tag := row["tag"]
		if tag == "" || !suggest.ContainsFold(tag, prefix) {
			continue
		}
		n, _ := strconv.Atoi(row["count"])
		out = append(out, suggest.TagCount{Tag: tag, Count: n})
	}
	suggest.SortTagCounts(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
