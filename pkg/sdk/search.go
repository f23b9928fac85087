package promptdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/search/request"
)

// Search runs a ranked query as principal.
func (c *Client) Search(ctx context.Context, p Principal, query string, opts SearchOptions) (page SearchPage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	filters, err := toInternalFilters(opts.Filters)
	if err != nil {
		return SearchPage{}, fmt.Errorf("search: %w", domain.Invalid("filters", err.Error()))
	}
	params := request.Params{
		Query:   query,
		Mode:    string(opts.Mode),
		Filters: filters,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		Scope:   toScope(p, !opts.ExcludePublic),
	}
	if opts.LexicalWeight != 0 || opts.SemanticWeight != 0 {
		params.Weights = &request.Weights{Lexical: opts.LexicalWeight, Semantic: opts.SemanticWeight}
	}
	req, err := request.New(params)
	if err != nil {
		return SearchPage{}, fmt.Errorf("search: %w", err)
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	res, err := c.searchSvc.Search(ctx, req)
	if err != nil {
		return SearchPage{}, fmt.Errorf("search: %w", err)
	}
	tokens, _ := usage.Snapshot()
	return fromPage(&res, tokens), nil
}

// FindSimilar returns prompts whose stored embeddings are close to itemID's.
// threshold <= 0 selects the default cosine floor (0.70).
func (c *Client) FindSimilar(
	ctx context.Context, p Principal, itemID string, threshold float64, limit int,
) (page SearchPage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("find_similar", start, err) }()

	var thr *float64
	if threshold > 0 {
		thr = &threshold
	}
	req, err := request.NewSimilar(request.SimilarParams{
		ItemID:    itemID,
		Threshold: thr,
		Limit:     limit,
		Scope:     toScope(p, true),
	}, c.searchSvc.SimilarThreshold())
	if err != nil {
		return SearchPage{}, fmt.Errorf("find similar: %w", err)
	}
	res, err := c.searchSvc.FindSimilar(ctx, req)
	if err != nil {
		return SearchPage{}, fmt.Errorf("find similar: %w", err)
	}
	return fromPage(&res, 0), nil
}

// Suggest returns autocomplete candidates for prefix. It never fails: an
// invalid request or a broken tier yields fewer (possibly zero) suggestions.
func (c *Client) Suggest(ctx context.Context, p Principal, prefix string, opts SuggestOptions) []Suggestion {
	start := time.Now()
	req, err := request.NewSuggest(request.SuggestParams{
		Prefix:         prefix,
		Limit:          opts.Limit,
		IncludeHistory: !opts.SkipHistory,
		Scope:          toScope(p, !opts.ExcludePublic),
	})
	c.obs.observe("suggest", start, err)
	if err != nil {
		return []Suggestion{}
	}
	return fromCandidates(c.suggestSvc.Suggest(ctx, req))
}

// QueryBuilder is a fluent builder for Search calls.
type QueryBuilder struct {
	client    *Client
	query     string
	principal Principal
	opts      SearchOptions
}

// Query starts a search for q. The principal defaults to anonymous.
func (c *Client) Query(q string) *QueryBuilder {
	return &QueryBuilder{client: c, query: q}
}

// As runs the query on behalf of p.
func (b *QueryBuilder) As(p Principal) *QueryBuilder {
	b.principal = p
	return b
}

// Mode sets the search mode.
func (b *QueryBuilder) Mode(m SearchMode) *QueryBuilder {
	b.opts.Mode = m
	return b
}

// Tags keeps results carrying any of tags.
func (b *QueryBuilder) Tags(tags ...string) *QueryBuilder {
	b.opts.Filters.Tags = append(b.opts.Filters.Tags, tags...)
	return b
}

// Public restricts results to public (true) or private (false) prompts.
func (b *QueryBuilder) Public(v bool) *QueryBuilder {
	b.opts.Filters.IsPublic = &v
	return b
}

// Between keeps prompts created in [after, before). A zero bound is open.
func (b *QueryBuilder) Between(after, before time.Time) *QueryBuilder {
	if !after.IsZero() {
		b.opts.Filters.CreatedAfter = &after
	}
	if !before.IsZero() {
		b.opts.Filters.CreatedBefore = &before
	}
	return b
}

// Workspace keeps prompts of one workspace.
func (b *QueryBuilder) Workspace(id string) *QueryBuilder {
	b.opts.Filters.WorkspaceID = &id
	return b
}

// Author keeps prompts owned by one user.
func (b *QueryBuilder) Author(id string) *QueryBuilder {
	b.opts.Filters.AuthorID = &id
	return b
}

// MinUsage keeps prompts used at least n times.
func (b *QueryBuilder) MinUsage(n int) *QueryBuilder {
	b.opts.Filters.MinUsage = &n
	return b
}

// OwnOnly drops public prompts of other users and workspaces.
func (b *QueryBuilder) OwnOnly() *QueryBuilder {
	b.opts.ExcludePublic = true
	return b
}

// Weights overrides the fusion weights for this query.
func (b *QueryBuilder) Weights(lexical, semantic float64) *QueryBuilder {
	b.opts.LexicalWeight = lexical
	b.opts.SemanticWeight = semantic
	return b
}

// Limit sets the page size.
func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	b.opts.Limit = n
	return b
}

// Offset skips the first n results.
func (b *QueryBuilder) Offset(n int) *QueryBuilder {
	b.opts.Offset = n
	return b
}

// Do executes the search.
func (b *QueryBuilder) Do(ctx context.Context) (SearchPage, error) {
	return b.client.Search(ctx, b.principal, b.query, b.opts)
}
