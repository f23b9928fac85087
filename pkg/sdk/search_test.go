package promptdex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/search/mode"
	"github.com/kailas-cloud/promptdex/internal/domain/search/request"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
	domsuggest "github.com/kailas-cloud/promptdex/internal/domain/suggest"
)

func TestSearch(t *testing.T) {
	lex := 0.8
	mock := &mockSearchUC{
		searchFn: func(ctx context.Context, req request.Request) (result.Page, error) {
			if req.Query() != "cold email" || req.Mode() != mode.Hybrid {
				t.Errorf("query/mode = %q/%q", req.Query(), req.Mode())
			}
			if req.Scope().Principal.UserID != "u1" || !req.Scope().IncludePublic {
				t.Errorf("scope = %+v", req.Scope())
			}
			if tags := req.Filters().Tags(); len(tags) != 1 || tags[0] != "sales" {
				t.Errorf("tags = %v, want [sales]", tags)
			}
			domain.UsageFromContext(ctx).AddTokens(12)
			return result.Page{
				Results: []result.Scored{{
					ItemID:        "p1",
					Rank:          1,
					CombinedScore: 0.033,
					Breakdown:     result.Breakdown{Lexical: &lex, Combined: 0.033},
					Item:          testItem("p1"),
				}},
				Total:    1,
				Query:    req.Query(),
				Mode:     req.Mode(),
				Degraded: true,
				Sources:  []mode.Source{mode.SourceLexical},
			}, nil
		},
	}
	c := &Client{searchSvc: mock}

	page, err := c.Search(context.Background(), Principal{UserID: "u1"}, "cold email", SearchOptions{
		Filters: Filters{Tags: []string{"Sales"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 1 || len(page.Results) != 1 {
		t.Fatalf("page = %+v", page)
	}
	r := page.Results[0]
	if r.Item.ID != "p1" || r.Rank != 1 || *r.Breakdown.Lexical != 0.8 || r.Breakdown.Semantic != nil {
		t.Errorf("result = %+v", r)
	}
	if !page.Degraded || len(page.Sources) != 1 || page.Sources[0] != "lexical" {
		t.Errorf("degraded/sources = %v/%v", page.Degraded, page.Sources)
	}
	if page.EmbeddingTokens != 12 {
		t.Errorf("EmbeddingTokens = %d, want 12", page.EmbeddingTokens)
	}
}

func TestSearch_Validation(t *testing.T) {
	called := false
	c := &Client{searchSvc: &mockSearchUC{
		searchFn: func(context.Context, request.Request) (result.Page, error) {
			called = true
			return result.Page{}, nil
		},
	}}

	tests := []struct {
		name  string
		query string
		opts  SearchOptions
	}{
		{"empty query", "  ", SearchOptions{}},
		{"bad mode", "x", SearchOptions{Mode: "fuzzy"}},
		{"limit too large", "x", SearchOptions{Limit: 101}},
		{"negative offset", "x", SearchOptions{Offset: -1}},
		{"negative weight", "x", SearchOptions{LexicalWeight: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Search(context.Background(), Principal{}, tt.query, tt.opts)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
	if called {
		t.Error("invalid requests must not reach the search service")
	}
}

func TestSearch_Unavailable(t *testing.T) {
	c := &Client{searchSvc: &mockSearchUC{
		searchFn: func(context.Context, request.Request) (result.Page, error) {
			return result.Page{}, domain.ErrSearchUnavailable
		},
	}}
	_, err := c.Search(context.Background(), Principal{}, "x", SearchOptions{})
	if !errors.Is(err, ErrSearchUnavailable) {
		t.Errorf("err = %v, want ErrSearchUnavailable", err)
	}
}

func TestQueryBuilder(t *testing.T) {
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var got request.Request
	c := &Client{searchSvc: &mockSearchUC{
		searchFn: func(_ context.Context, req request.Request) (result.Page, error) {
			got = req
			return result.Page{}, nil
		},
	}}

	_, err := c.Query("summarize").
		As(Principal{UserID: "u1", WorkspaceID: "ws1"}).
		Mode(ModeKeyword).
		Tags("writing").
		Public(false).
		Between(after, time.Time{}).
		Workspace("ws1").
		Author("u1").
		MinUsage(3).
		OwnOnly().
		Weights(2, 1).
		Limit(5).
		Offset(10).
		Do(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Mode() != mode.Keyword || got.Limit() != 5 || got.Offset() != 10 {
		t.Errorf("mode/limit/offset = %s/%d/%d", got.Mode(), got.Limit(), got.Offset())
	}
	if got.Scope().IncludePublic {
		t.Error("OwnOnly must exclude public prompts")
	}
	f := got.Filters()
	if v, ok := f.IsPublic().Get(); !ok || v {
		t.Errorf("IsPublic = %v/%v", v, ok)
	}
	if v, ok := f.CreatedAfter().Get(); !ok || !v.Equal(after) {
		t.Errorf("CreatedAfter = %v/%v", v, ok)
	}
	if f.CreatedBefore().IsSet() {
		t.Error("zero upper bound must stay open")
	}
	if v, _ := f.MinUsage().Get(); v != 3 {
		t.Errorf("MinUsage = %d, want 3", v)
	}
	if w := got.Weights(request.Weights{Lexical: 1, Semantic: 1}); w.Lexical != 2 || w.Semantic != 1 {
		t.Errorf("weights = %+v", w)
	}
}

func TestFindSimilar(t *testing.T) {
	c := &Client{searchSvc: &mockSearchUC{
		similarFn: func(_ context.Context, req request.Similar) (result.Page, error) {
			if req.ItemID() != "p1" || req.Threshold() != request.DefaultSimilarThreshold || req.Limit() != 5 {
				t.Errorf("request = %s/%v/%d", req.ItemID(), req.Threshold(), req.Limit())
			}
			return result.Page{Results: []result.Scored{{ItemID: "p2", Rank: 1, Item: testItem("p2")}}, Total: 1}, nil
		},
	}}

	page, err := c.FindSimilar(context.Background(), Principal{UserID: "u1"}, "p1", 0, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Results) != 1 || page.Results[0].Item.ID != "p2" {
		t.Errorf("results = %+v", page.Results)
	}
}

func TestFindSimilar_Errors(t *testing.T) {
	c := &Client{searchSvc: &mockSearchUC{
		similarFn: func(context.Context, request.Similar) (result.Page, error) {
			return result.Page{}, domain.ErrNotFound
		},
	}}

	if _, err := c.FindSimilar(context.Background(), Principal{}, "p1", 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := c.FindSimilar(context.Background(), Principal{}, "p1", 1.5, 0); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestSuggest(t *testing.T) {
	c := &Client{suggestSvc: &mockSuggestUC{
		suggestFn: func(_ context.Context, req request.Suggest) []domsuggest.Candidate {
			if req.Prefix() != "cold" || !req.IncludeHistory() {
				t.Errorf("prefix/history = %q/%v", req.Prefix(), req.IncludeHistory())
			}
			return []domsuggest.Candidate{
				{Text: "cold email opener", Source: domsuggest.SourceHistory, Similarity: 1},
				{Text: "outreach", Source: domsuggest.SourceTag, Similarity: 0.4},
			}
		},
	}}

	got := c.Suggest(context.Background(), Principal{UserID: "u1"}, "cold", SuggestOptions{})
	if len(got) != 2 || got[0].Source != "history" || got[1].Text != "outreach" {
		t.Errorf("suggestions = %+v", got)
	}
}

func TestSuggest_InvalidNeverFails(t *testing.T) {
	c := &Client{suggestSvc: &mockSuggestUC{
		suggestFn: func(context.Context, request.Suggest) []domsuggest.Candidate {
			t.Error("invalid request must not reach the service")
			return nil
		},
	}}

	got := c.Suggest(context.Background(), Principal{}, "x", SuggestOptions{Limit: 50})
	if got == nil || len(got) != 0 {
		t.Errorf("suggestions = %v, want empty non-nil", got)
	}
}
