package promptdex

import (
	"time"

	"github.com/kailas-cloud/promptdex/internal/domain/access"
	dombatch "github.com/kailas-cloud/promptdex/internal/domain/batch"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
	domsuggest "github.com/kailas-cloud/promptdex/internal/domain/suggest"
)

// SearchMode controls the ranking strategy.
type SearchMode string

// Search mode constants.
const (
	ModeHybrid   SearchMode = "hybrid"
	ModeSemantic SearchMode = "semantic"
	ModeFullText SearchMode = "fulltext"
	ModeKeyword  SearchMode = "keyword"
)

// Principal is the caller a query runs as. An empty UserID means anonymous,
// which only ever sees public prompts.
type Principal struct {
	UserID      string
	WorkspaceID string
}

// Item is a prompt in the searchable index.
type Item struct {
	ID          string
	Title       string
	Body        string
	Tags        []string
	OwnerID     string
	WorkspaceID string
	IsPublic    bool
	UsageCount  int
	CreatedAt   time.Time
}

// Filters narrow a search. Nil fields are unset; Tags match any.
type Filters struct {
	Tags          []string
	IsPublic      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	WorkspaceID   *string
	MinUsage      *int
	AuthorID      *string
}

// SearchOptions tunes one search call.
type SearchOptions struct {
	Mode    SearchMode // empty selects hybrid
	Filters Filters
	Limit   int // 0 selects the default (20)
	Offset  int
	// ExcludePublic restricts results to the principal's own and workspace prompts.
	ExcludePublic bool
	// LexicalWeight and SemanticWeight override the client defaults when either is non-zero.
	LexicalWeight  float64
	SemanticWeight float64
}

// ScoreBreakdown holds the per-source scores behind a combined score.
// A nil source means the item was absent from that source's ranking.
type ScoreBreakdown struct {
	Lexical  *float64
	Semantic *float64
	Combined float64
}

// SearchResult is one ranked hit.
type SearchResult struct {
	Item      Item
	Rank      int
	Score     float64
	Breakdown ScoreBreakdown
	Highlight string
}

// SearchPage is one page of ranked results.
type SearchPage struct {
	Results  []SearchResult
	Total    int
	Query    string
	Mode     SearchMode
	Duration time.Duration
	// Degraded is set when a hybrid search lost one of its sources.
	Degraded bool
	Sources  []string
	// EmbeddingTokens is how many provider tokens the call consumed.
	EmbeddingTokens int
}

// SuggestOptions tunes autocomplete.
type SuggestOptions struct {
	Limit         int // 0 selects the default (8)
	SkipHistory   bool
	ExcludePublic bool
}

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	Text       string
	Source     string // "history", "title" or "tag"
	Similarity float64
}

// BatchResult is the outcome of one item in a batch operation.
type BatchResult struct {
	ID     string
	Status string // "created", "updated", "deleted" or "error"
	Err    error
}

// OK reports whether the item succeeded.
func (r BatchResult) OK() bool { return r.Err == nil }

func toScope(p Principal, includePublic bool) access.Scope {
	return access.NewScope(access.Principal{UserID: p.UserID, WorkspaceID: p.WorkspaceID}, includePublic)
}

func toInternalItem(it Item) (item.Item, error) {
	return item.New(item.Attrs{
		ID:          it.ID,
		Title:       it.Title,
		Body:        it.Body,
		Tags:        it.Tags,
		OwnerID:     it.OwnerID,
		WorkspaceID: it.WorkspaceID,
		IsPublic:    it.IsPublic,
		UsageCount:  it.UsageCount,
		CreatedAt:   it.CreatedAt,
	})
}

func fromInternalItem(it *item.Item) Item {
	a := it.Attrs()
	return Item{
		ID:          a.ID,
		Title:       a.Title,
		Body:        a.Body,
		Tags:        a.Tags,
		OwnerID:     a.OwnerID,
		WorkspaceID: a.WorkspaceID,
		IsPublic:    a.IsPublic,
		UsageCount:  a.UsageCount,
		CreatedAt:   a.CreatedAt,
	}
}

func toInternalFilters(f Filters) (filter.Filters, error) {
	return filter.New(filter.Params{
		Tags:          f.Tags,
		IsPublic:      filter.FromPtr(f.IsPublic),
		CreatedAfter:  filter.FromPtr(f.CreatedAfter),
		CreatedBefore: filter.FromPtr(f.CreatedBefore),
		WorkspaceID:   filter.FromPtr(f.WorkspaceID),
		MinUsage:      filter.FromPtr(f.MinUsage),
		AuthorID:      filter.FromPtr(f.AuthorID),
	})
}

func fromPage(p *result.Page, tokens int) SearchPage {
	out := SearchPage{
		Results:         make([]SearchResult, len(p.Results)),
		Total:           p.Total,
		Query:           p.Query,
		Mode:            SearchMode(p.Mode),
		Duration:        p.Duration,
		Degraded:        p.Degraded,
		Sources:         make([]string, len(p.Sources)),
		EmbeddingTokens: tokens,
	}
	for i := range p.Results {
		r := &p.Results[i]
		out.Results[i] = SearchResult{
			Item:  fromInternalItem(&r.Item),
			Rank:  r.Rank,
			Score: r.CombinedScore,
			Breakdown: ScoreBreakdown{
				Lexical:  r.Breakdown.Lexical,
				Semantic: r.Breakdown.Semantic,
				Combined: r.Breakdown.Combined,
			},
			Highlight: r.Highlight,
		}
	}
	for i, s := range p.Sources {
		out.Sources[i] = string(s)
	}
	return out
}

func fromCandidates(cs []domsuggest.Candidate) []Suggestion {
	out := make([]Suggestion, len(cs))
	for i, c := range cs {
		out[i] = Suggestion{Text: c.Text, Source: string(c.Source), Similarity: c.Similarity}
	}
	return out
}

func fromBatchResults(rs []dombatch.Result) []BatchResult {
	out := make([]BatchResult, len(rs))
	for i, r := range rs {
		out[i] = BatchResult{ID: r.ID(), Status: string(r.Status()), Err: r.Err()}
	}
	return out
}
