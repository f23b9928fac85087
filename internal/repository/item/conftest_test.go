package item

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/promptdex/internal/db"
	domitem "github.com/kailas-cloud/promptdex/internal/domain/item"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	textSearch     bool
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) error
	hashes         map[string]map[string]string
	delFn          func(ctx context.Context, keys ...string) error
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	searchBM25Fn   func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	searchListFn   func(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	aggregateFn    func(ctx context.Context, index, query string, args ...string) ([]map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if h, ok := m.hashes[key]; ok {
		return h, nil
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i], _ = m.HGetAll(ctx, k)
	}
	return out, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	keys := make([]string, 0, len(m.hashes))
	for k := range m.hashes {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) SupportsTextSearch(context.Context) bool { return m.textSearch }

func (m *mockStore) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchBM25Fn != nil {
		return m.searchBM25Fn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, index, query, offset, limit, fields)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) Aggregate(ctx context.Context, index, query string, args ...string) ([]map[string]string, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, index, query, args...)
	}
	return nil, nil
}

func newTestRepo(t *testing.T, textSearch bool) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{textSearch: textSearch, hashes: map[string]map[string]string{}}
	return New(ms, 100), ms
}

var baseTime = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func mustItem(t *testing.T, a domitem.Attrs) domitem.Item {
	t.Helper()
	if a.Title == "" {
		a.Title = "Title " + a.ID
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = baseTime
	}
	it, err := domitem.New(a)
	if err != nil {
		t.Fatalf("item.New: %v", err)
	}
	return it
}
