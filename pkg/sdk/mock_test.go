package promptdex

import (
	"context"

	dombatch "github.com/kailas-cloud/promptdex/internal/domain/batch"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/request"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
	domsuggest "github.com/kailas-cloud/promptdex/internal/domain/suggest"
	healthuc "github.com/kailas-cloud/promptdex/internal/usecase/health"
)

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn  func(ctx context.Context, req request.Request) (result.Page, error)
	similarFn func(ctx context.Context, req request.Similar) (result.Page, error)
}

func (m *mockSearchUC) Search(ctx context.Context, req request.Request) (result.Page, error) {
	return m.searchFn(ctx, req)
}

func (m *mockSearchUC) FindSimilar(ctx context.Context, req request.Similar) (result.Page, error) {
	return m.similarFn(ctx, req)
}

func (m *mockSearchUC) SimilarThreshold() float64 { return request.DefaultSimilarThreshold }

// --- suggestUseCase mock ---

type mockSuggestUC struct {
	suggestFn func(ctx context.Context, req request.Suggest) []domsuggest.Candidate
}

func (m *mockSuggestUC) Suggest(ctx context.Context, req request.Suggest) []domsuggest.Candidate {
	return m.suggestFn(ctx, req)
}

// --- catalogUseCase mock ---

type mockCatalogUC struct {
	upsertFn func(ctx context.Context, it *item.Item, embed bool) (bool, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockCatalogUC) Upsert(ctx context.Context, it *item.Item, embed bool) (bool, error) {
	return m.upsertFn(ctx, it, embed)
}

func (m *mockCatalogUC) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

// --- batchUseCase mock ---

type mockBatchUC struct {
	upsertFn func(ctx context.Context, items []item.Item, embed bool) []dombatch.Result
	deleteFn func(ctx context.Context, ids []string) []dombatch.Result
}

func (m *mockBatchUC) Upsert(ctx context.Context, items []item.Item, embed bool) []dombatch.Result {
	return m.upsertFn(ctx, items, embed)
}

func (m *mockBatchUC) Delete(ctx context.Context, ids []string) []dombatch.Result {
	return m.deleteFn(ctx, ids)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- pinger mock ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

// --- Embedder mock ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

// --- helpers ---

func testItem(id string) item.Item {
	return item.Reconstruct(item.Attrs{ID: id, Title: "Prompt " + id, OwnerID: "u1", IsPublic: true})
}
