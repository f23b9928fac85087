package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
	"github.com/kailas-cloud/promptdex/internal/domain/suggest"
	"github.com/kailas-cloud/promptdex/internal/domain/vector"
)

// scoreEpsilon guards normalization against an all-zero result set.
const scoreEpsilon = 1e-9

// LexicalRetriever answers FULLTEXT queries from the text index and KEYWORD queries by substring.
type LexicalRetriever struct {
	items       ItemStore
	keywordPool int
}

// NewLexicalRetriever creates a lexical retriever. keywordPool bounds the candidates scanned in KEYWORD mode.
func NewLexicalRetriever(items ItemStore, keywordPool int) *LexicalRetriever {
	if keywordPool <= 0 {
		keywordPool = 1000
	}
	return &LexicalRetriever{items: items, keywordPool: keywordPool}
}

// FullText returns up to limit hits with scores normalized to [0,1] by the best raw score.
func (r *LexicalRetriever) FullText(
	ctx context.Context, query string, f filter.Filters, scope access.Scope, limit int,
) ([]result.Hit, error) {
	hits, err := r.items.Lexical(ctx, query, f, scope, limit)
	if err != nil {
		if !errors.Is(err, domain.ErrIndexUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
		}
		return nil, err
	}
	return normalize(hits), nil
}

// Keyword matches query as a case-insensitive substring of title or body. Every match scores 1.0.
// All matches in the candidate pool are ordered by tieBreak before the list is cut to limit.
func (r *LexicalRetriever) Keyword(
	ctx context.Context, query string, f filter.Filters, scope access.Scope, limit int,
) ([]result.Hit, error) {
	items, err := r.items.Candidates(ctx, f, scope, r.keywordPool)
	if err != nil {
		return nil, fmt.Errorf("%w: keyword candidates: %w", domain.ErrIndexUnavailable, err)
	}
	var matched []*item.Item
	for i := range items {
		it := &items[i]
		if suggest.ContainsFold(it.Title(), query) || suggest.ContainsFold(it.Body(), query) {
			matched = append(matched, it)
		}
	}
	slices.SortFunc(matched, tieBreak)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	hits := make([]result.Hit, len(matched))
	for i, it := range matched {
		hits[i] = result.Hit{ItemID: it.ID(), Score: 1.0}
	}
	return hits, nil
}

// normalize divides each raw score by max(best raw score, epsilon) and sorts descending.
func normalize(hits []result.Hit) []result.Hit {
	best := 0.0
	for _, h := range hits {
		best = max(best, h.Score)
	}
	denom := max(best, scoreEpsilon)
	out := make([]result.Hit, len(hits))
	for i, h := range hits {
		out[i] = result.Hit{ItemID: h.ItemID, Score: max(h.Score, 0) / denom, Highlight: h.Highlight}
	}
	sortHits(out)
	return out
}

func sortHits(hits []result.Hit) {
	slices.SortStableFunc(hits, func(a, b result.Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// Strategy selects how the semantic retriever reaches the vector store.
type Strategy string

// Semantic strategies. Both produce the same ordering and score semantics.
const (
	// StrategyNative delegates to the store's KNN operator with an access pre-filter.
	StrategyNative Strategy = "native"
	// StrategyScan fetches access-filtered candidates and scores their vectors locally.
	StrategyScan Strategy = "scan"
)

// SemanticRetriever ranks items by cosine similarity to a query vector.
type SemanticRetriever struct {
	items    ItemStore
	vectors  VectorStore
	model    string
	strategy Strategy
	scanPool int
}

// NewSemanticRetriever creates a semantic retriever for one embedding model.
func NewSemanticRetriever(items ItemStore, vectors VectorStore, model string, strategy Strategy, scanPool int) *SemanticRetriever {
	if strategy != StrategyScan {
		strategy = StrategyNative
	}
	if scanPool <= 0 {
		scanPool = 1000
	}
	return &SemanticRetriever{items: items, vectors: vectors, model: model, strategy: strategy, scanPool: scanPool}
}

// Model returns the embedding model this retriever compares against.
func (r *SemanticRetriever) Model() string { return r.model }

// Search returns up to k hits visible under scope, by cosine similarity descending.
// No threshold is applied.
func (r *SemanticRetriever) Search(
	ctx context.Context, vec []float32, f filter.Filters, scope access.Scope, k int,
) ([]result.Hit, error) {
	if r.strategy == StrategyScan {
		return r.scan(ctx, vec, f, scope, k)
	}
	hits, err := r.vectors.Nearest(ctx, vec, r.model, f, scope, k)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbours: %w", err)
	}
	return hits, nil
}

func (r *SemanticRetriever) scan(
	ctx context.Context, vec []float32, f filter.Filters, scope access.Scope, k int,
) ([]result.Hit, error) {
	items, err := r.items.Candidates(ctx, f, scope, r.scanPool)
	if err != nil {
		return nil, fmt.Errorf("%w: semantic candidates: %w", domain.ErrVectorStoreUnavailable, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID()
	}
	vecs, err := r.vectors.GetMany(ctx, ids, r.model)
	if err != nil {
		return nil, fmt.Errorf("fetch candidate vectors: %w", err)
	}

	hits := make([]result.Hit, 0, len(vecs))
	for _, id := range ids {
		v, ok := vecs[id]
		if !ok {
			continue
		}
		hits = append(hits, result.Hit{ItemID: id, Score: vector.Cosine(vec, v)})
	}
	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// queryVector embeds the query at most once per request.
type queryVector struct {
	once  sync.Once
	embed Embedder
	text  string
	vec   []float32
	err   error
}

func newQueryVector(embed Embedder, text string) *queryVector {
	return &queryVector{embed: embed, text: text}
}

// get returns the memoized embedding. The first caller's ctx bounds the provider call.
func (q *queryVector) get(ctx context.Context) ([]float32, error) {
	q.once.Do(func() {
		res, err := q.embed.Embed(ctx, q.text)
		if err != nil {
			if !domain.IsSourceUnavailable(err) {
				err = fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
			}
			q.err = fmt.Errorf("embed query: %w", err)
			return
		}
		if len(res.Embedding) == 0 {
			q.err = fmt.Errorf("embed query: empty vector: %w", domain.ErrEmbeddingProviderError)
			return
		}
		q.vec = res.Embedding
	})
	return q.vec, q.err
}
