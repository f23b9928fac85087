// Package suggest ranks autocomplete candidates from history, titles and tags.
package suggest

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/history"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
	"github.com/kailas-cloud/promptdex/internal/domain/search/request"
	domsuggest "github.com/kailas-cloud/promptdex/internal/domain/suggest"
	"github.com/kailas-cloud/promptdex/internal/logger"
	"github.com/kailas-cloud/promptdex/internal/metrics"
)

// Tier sizes.
const (
	MaxHistory = 3
	MaxTags    = 3
	// historyScan is how many recent entries are scanned for prefix matches.
	historyScan = 50
)

// TitleStore answers fuzzy title and tag lookups over accessible items.
type TitleStore interface {
	FuzzyTitles(ctx context.Context, prefix string, scope access.Scope, floor float64, limit int) ([]domsuggest.Candidate, error)
	PopularTags(ctx context.Context, prefix string, scope access.Scope, limit int) ([]domsuggest.TagCount, error)
	Candidates(ctx context.Context, f filter.Filters, scope access.Scope, limit int) ([]item.Item, error)
}

// HistoryReader returns a user's most recent searches, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, userID string, n int) ([]history.Entry, error)
}

// Config tunes the ranker.
type Config struct {
	TrigramFloor float64
	CandidateCap int
}

// Service merges suggestion tiers. History first, then everything else by similarity.
type Service struct {
	titles  TitleStore
	history HistoryReader
	cfg     Config
}

// New creates a suggestion service. history may be nil.
func New(titles TitleStore, hist HistoryReader, cfg Config) *Service {
	if cfg.TrigramFloor <= 0 {
		cfg.TrigramFloor = domsuggest.DefaultTrigramFloor
	}
	if cfg.CandidateCap <= 0 {
		cfg.CandidateCap = 1000
	}
	return &Service{titles: titles, history: hist, cfg: cfg}
}

// Suggest returns up to req.Limit() suggestions. Tier failures are logged and skipped; the call itself never fails.
func (s *Service) Suggest(ctx context.Context, req request.Suggest) []domsuggest.Candidate {
	prefix := req.Prefix()
	if prefix == "" {
		return []domsuggest.Candidate{}
	}
	log := logger.FromContext(ctx)

	var out []domsuggest.Candidate
	if req.IncludeHistory() && s.history != nil {
		out = append(out, s.historyTier(ctx, log, prefix, req.Scope().Principal.UserID)...)
	}

	var rest []domsuggest.Candidate
	rest = append(rest, s.titleTier(ctx, log, prefix, req.Scope(), req.Limit())...)
	rest = append(rest, s.tagTier(ctx, log, prefix, req.Scope())...)
	domsuggest.SortBySimilarity(rest)

	return dedupe(append(out, rest...), req.Limit())
}

func (s *Service) historyTier(ctx context.Context, log *zap.Logger, prefix, userID string) []domsuggest.Candidate {
	entries, err := s.history.Recent(ctx, userID, historyScan)
	if err != nil {
		log.Warn("Suggest history tier failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	lp := strings.ToLower(prefix)
	var out []domsuggest.Candidate
	for _, e := range entries {
		if !strings.HasPrefix(strings.ToLower(e.Query), lp) {
			continue
		}
		out = append(out, domsuggest.Candidate{
			Text: e.Query, Source: domsuggest.SourceHistory, Similarity: domsuggest.HistorySimilarity,
		})
		if len(out) == MaxHistory {
			break
		}
	}
	return out
}

func (s *Service) titleTier(
	ctx context.Context, log *zap.Logger, prefix string, scope access.Scope, limit int,
) []domsuggest.Candidate {
	cs, err := s.titles.FuzzyTitles(ctx, prefix, scope, s.cfg.TrigramFloor, limit)
	if err == nil {
		return cs
	}
	log.Warn("Fuzzy title match unavailable, using substring fallback", zap.Error(err))
	metrics.SuggestFallbackTotal.Inc()

	items, err := s.titles.Candidates(ctx, filter.Filters{}, scope, s.cfg.CandidateCap)
	if err != nil {
		log.Warn("Suggest substring fallback failed", zap.Error(err))
		return nil
	}
	var out []domsuggest.Candidate
	for i := range items {
		if domsuggest.ContainsFold(items[i].Title(), prefix) {
			out = append(out, domsuggest.Candidate{
				Text: items[i].Title(), Source: domsuggest.SourceTitle, Similarity: domsuggest.SubstringSimilarity,
			})
		}
	}
	domsuggest.SortBySimilarity(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// tagTier scores the most frequent matching tags by their trigram similarity to the prefix.
func (s *Service) tagTier(ctx context.Context, log *zap.Logger, prefix string, scope access.Scope) []domsuggest.Candidate {
	tags, err := s.titles.PopularTags(ctx, prefix, scope, MaxTags)
	if err != nil {
		log.Warn("Suggest tag tier failed", zap.Error(err))
		return nil
	}
	out := make([]domsuggest.Candidate, 0, len(tags))
	for _, t := range tags {
		out = append(out, domsuggest.Candidate{
			Text: t.Tag, Source: domsuggest.SourceTag, Similarity: domsuggest.Similarity(prefix, t.Tag),
		})
	}
	return out
}

// dedupe keeps the first occurrence of each text, ignoring case, and truncates to limit.
func dedupe(cs []domsuggest.Candidate, limit int) []domsuggest.Candidate {
	seen := make(map[string]struct{}, len(cs))
	out := make([]domsuggest.Candidate, 0, min(len(cs), limit))
	for _, c := range cs {
		k := strings.ToLower(c.Text)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}
