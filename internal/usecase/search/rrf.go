package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/mode"
	"github.com/kailas-cloud/promptdex/internal/domain/search/request"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
)

// DefaultRRFK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const DefaultRRFK = 60

// sourceList is one retriever's ranked output.
type sourceList struct {
	source mode.Source
	hits   []result.Hit
}

// fused is an item's combined score before items are loaded.
type fused struct {
	itemID    string
	combined  float64
	breakdown result.Breakdown
	highlight string
}

// fuseRRF merges ranked lists via Reciprocal Rank Fusion.
// score(d) = sum of weight[list] / (k + rank_list(d)) over the lists where d appears (1-based ranks).
// Breakdown keeps each list's local score. Output order is first appearance; sort happens after loading.
func fuseRRF(lists []sourceList, weights request.Weights, k int) []fused {
	if k <= 0 {
		k = DefaultRRFK
	}
	var out []fused
	index := make(map[string]int)

	for _, l := range lists {
		w := weights.Of(l.source)
		for rank, h := range l.hits {
			i, ok := index[h.ItemID]
			if !ok {
				i = len(out)
				index[h.ItemID] = i
				out = append(out, fused{itemID: h.ItemID})
			}
			// duplicates within one list keep their first (best) rank
			if _, seen := out[i].breakdown.Of(l.source); seen {
				continue
			}
			out[i].combined += w / float64(k+rank+1)
			setSource(&out[i].breakdown, l.source, h.Score)
		}
	}
	for i := range out {
		out[i].breakdown.Combined = result.Round3(out[i].combined)
	}
	return out
}

// passThrough ranks a single source by its own normalized score.
func passThrough(l sourceList) []fused {
	out := make([]fused, 0, len(l.hits))
	seen := make(map[string]struct{}, len(l.hits))
	for _, h := range l.hits {
		if _, dup := seen[h.ItemID]; dup {
			continue
		}
		seen[h.ItemID] = struct{}{}
		f := fused{itemID: h.ItemID, combined: h.Score}
		setSource(&f.breakdown, l.source, h.Score)
		f.breakdown.Combined = result.Round3(h.Score)
		out = append(out, f)
	}
	return out
}

func setSource(b *result.Breakdown, s mode.Source, score float64) {
	if s == mode.SourceSemantic {
		b.Semantic = result.Ptr(score)
		return
	}
	b.Lexical = result.Ptr(score)
}

// rankedItem pairs a fused score with its loaded item.
type rankedItem struct {
	fused
	item item.Item
}

// sortRanked orders by combined score desc, then by tieBreak.
func sortRanked(rs []rankedItem) {
	slices.SortStableFunc(rs, func(a, b rankedItem) int {
		if c := cmp.Compare(b.combined, a.combined); c != 0 {
			return c
		}
		return tieBreak(&a.item, &b.item)
	})
}

// tieBreak orders equally scored items: usageCount desc, createdAt desc, id asc.
func tieBreak(a, b *item.Item) int {
	if c := cmp.Compare(b.UsageCount(), a.UsageCount()); c != 0 {
		return c
	}
	if c := b.CreatedAt().Compare(a.CreatedAt()); c != 0 {
		return c
	}
	return strings.Compare(a.ID(), b.ID())
}
