package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
	"github.com/kailas-cloud/promptdex/internal/domain/search/request"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
)

func searchPromptsTool() mcp.Tool {
	return mcp.NewTool("search_prompts",
		mcp.WithDescription("Search the prompt library by keywords or meaning. "+
			"Hybrid mode fuses full-text and semantic rankings."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithString("mode",
			mcp.Description("Retrieval mode"),
			mcp.Enum("keyword", "fulltext", "semantic", "hybrid"),
			mcp.DefaultString("hybrid"),
		),
		mcp.WithNumber("limit", mcp.Description("Page size (1-100)"), mcp.DefaultNumber(20)),
		mcp.WithNumber("offset", mcp.Description("Results to skip (0-1000)"), mcp.DefaultNumber(0)),
		mcp.WithArray("tags", mcp.Description("Only prompts carrying any of these tags"), mcp.WithStringItems()),
		mcp.WithBoolean("include_public", mcp.Description("Include public prompts"), mcp.DefaultBool(true)),
	)
}

func suggestPromptsTool() mcp.Tool {
	return mcp.NewTool("suggest_prompts",
		mcp.WithDescription("Autocomplete a partial search query from recent searches, prompt titles and tags."),
		mcp.WithString("prefix", mcp.Required(), mcp.Description("What the user has typed so far")),
		mcp.WithNumber("limit", mcp.Description("Maximum suggestions (1-20)"), mcp.DefaultNumber(8)),
	)
}

func findSimilarPromptsTool() mcp.Tool {
	return mcp.NewTool("find_similar_prompts",
		mcp.WithDescription("Find prompts semantically similar to an existing prompt."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Reference prompt ID")),
		mcp.WithNumber("threshold", mcp.Description("Minimum cosine similarity (0-1)"), mcp.DefaultNumber(0.70)),
		mcp.WithNumber("limit", mcp.Description("Maximum results (1-100)"), mcp.DefaultNumber(20)),
	)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	filters, err := filter.New(filter.Params{Tags: req.GetStringSlice("tags", nil)})
	if err != nil {
		return mcp.NewToolResultError("invalid tags: " + err.Error()), nil
	}

	sr, err := request.New(request.Params{
		Query:   query,
		Mode:    req.GetString("mode", ""),
		Filters: filters,
		Limit:   req.GetInt("limit", 0),
		Offset:  req.GetInt("offset", 0),
		Scope:   access.NewScope(s.principal, req.GetBool("include_public", true)),
	})
	if err != nil {
		return s.toolError(err), nil
	}

	page, err := s.search.Search(ctx, sr)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(pageView(&page))
}

func (s *Server) handleSuggest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix, err := req.RequireString("prefix")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sr, err := request.NewSuggest(request.SuggestParams{
		Prefix:         prefix,
		Limit:          req.GetInt("limit", 0),
		IncludeHistory: true,
		Scope:          access.NewScope(s.principal, true),
	})
	if err != nil {
		return s.toolError(err), nil
	}

	cs := s.suggest.Suggest(ctx, sr)
	out := make([]suggestionView, len(cs))
	for i, c := range cs {
		out[i] = suggestionView{Text: c.Text, Source: string(c.Source), Similarity: result.Round3(c.Similarity)}
	}
	return jsonResult(map[string]any{"suggestions": out})
}

func (s *Server) handleFindSimilar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var threshold *float64
	if args := req.GetArguments(); args["threshold"] != nil {
		t := req.GetFloat("threshold", s.search.SimilarThreshold())
		threshold = &t
	}

	sr, err := request.NewSimilar(request.SimilarParams{
		ItemID:    id,
		Threshold: threshold,
		Limit:     req.GetInt("limit", 0),
		Scope:     access.NewScope(s.principal, true),
	}, s.search.SimilarThreshold())
	if err != nil {
		return s.toolError(err), nil
	}

	page, err := s.search.FindSimilar(ctx, sr)
	if err != nil {
		return s.toolError(err), nil
	}
	return jsonResult(pageView(&page))
}

// toolError reports err to the model as a failed tool call. Unknown errors are not echoed.
func (s *Server) toolError(err error) *mcp.CallToolResult {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return mcp.NewToolResultError(ve.Error())
	case errors.Is(err, domain.ErrNotFound):
		return mcp.NewToolResultError("prompt not found")
	case errors.Is(err, domain.ErrUnauthenticated):
		return mcp.NewToolResultError("this search needs a user identity; pass --user-id or set include_public")
	case errors.Is(err, domain.ErrSearchUnavailable), domain.IsSourceUnavailable(err):
		s.logger.Warn("mcp search unavailable", zap.Error(err))
		return mcp.NewToolResultError("search is temporarily unavailable: " + err.Error())
	}
	s.logger.Error("mcp tool failed", zap.Error(err))
	return mcp.NewToolResultError("internal error")
}

type resultView struct {
	ID        string   `json:"id"`
	Rank      int      `json:"rank"`
	Score     float64  `json:"score"`
	Lexical   *float64 `json:"lexical,omitempty"`
	Semantic  *float64 `json:"semantic,omitempty"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags,omitempty"`
	Highlight string   `json:"highlight,omitempty"`
}

type pageResult struct {
	Results  []resultView `json:"results"`
	Total    int          `json:"total"`
	Mode     string       `json:"mode"`
	Degraded bool         `json:"degraded"`
	Sources  []string     `json:"sources"`
}

type suggestionView struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

func pageView(p *result.Page) pageResult {
	out := pageResult{
		Results:  make([]resultView, len(p.Results)),
		Total:    p.Total,
		Mode:     string(p.Mode),
		Degraded: p.Degraded,
		Sources:  make([]string, len(p.Sources)),
	}
	for i := range p.Results {
		r := &p.Results[i]
		out.Results[i] = resultView{
			ID:        r.ItemID,
			Rank:      r.Rank,
			Score:     r.CombinedScore,
			Lexical:   r.Breakdown.Lexical,
			Semantic:  r.Breakdown.Semantic,
			Title:     r.Item.Title(),
			Tags:      r.Item.Tags(),
			Highlight: r.Highlight,
		}
	}
	for i, src := range p.Sources {
		out.Sources[i] = string(src)
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
