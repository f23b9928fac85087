package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
	"github.com/kailas-cloud/promptdex/internal/domain/search/mode"
	"github.com/kailas-cloud/promptdex/internal/domain/search/request"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
)

// FindSimilar returns items semantically close to a reference item, excluding the item itself.
// A reference without a stored vector yields an empty page.
func (s *Service) FindSimilar(ctx context.Context, req request.Similar) (result.Page, error) {
	start := s.now()
	scope := req.Scope()

	ref, err := s.items.Get(ctx, req.ItemID())
	if err != nil {
		return result.Page{}, fmt.Errorf("reference item: %w", err)
	}
	if !scope.Allows(&ref) {
		return result.Page{}, fmt.Errorf("reference item %s: %w", req.ItemID(), domain.ErrNotFound)
	}

	page := result.Page{Mode: mode.Semantic, Sources: []mode.Source{mode.SourceSemantic}}
	vec, err := s.semantic.vectors.Get(ctx, ref.ID(), s.semantic.Model())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			page.Duration = s.now().Sub(start)
			return page, nil
		}
		return result.Page{}, fmt.Errorf("reference vector: %w", err)
	}

	// one extra slot for the reference item itself
	hits, err := s.semantic.Search(ctx, vec, filter.Filters{}, scope, req.Limit()+1)
	if err != nil {
		return result.Page{}, err
	}

	kept := make([]fused, 0, len(hits))
	for _, h := range hits {
		if h.ItemID == ref.ID() || h.Score < req.Threshold() {
			continue
		}
		f := fused{itemID: h.ItemID, combined: h.Score}
		setSource(&f.breakdown, mode.SourceSemantic, h.Score)
		f.breakdown.Combined = result.Round3(h.Score)
		kept = append(kept, f)
	}

	ranked, err := s.load(ctx, kept, scope)
	if err != nil {
		return result.Page{}, err
	}
	sortRanked(ranked)
	if len(ranked) > req.Limit() {
		ranked = ranked[:req.Limit()]
	}

	page.Results = make([]result.Scored, len(ranked))
	for i, r := range ranked {
		page.Results[i] = result.Scored{
			ItemID:        r.itemID,
			Rank:          i + 1,
			CombinedScore: r.combined,
			Breakdown:     r.breakdown,
			Item:          r.item,
		}
	}
	page.Total = len(ranked)
	page.Duration = s.now().Sub(start)
	return page, nil
}
