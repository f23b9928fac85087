package request

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
	"github.com/kailas-cloud/promptdex/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum query length in characters.
	MaxQueryLength = 500
	DefaultLimit   = 20
	MaxLimit       = 100
	MaxOffset      = 10_000
)

// Weights scale the RRF contribution of each source.
type Weights struct {
	Lexical  float64
	Semantic float64
}

// Of returns the weight for a source.
func (w Weights) Of(s mode.Source) float64 {
	if s == mode.SourceSemantic {
		return w.Semantic
	}
	return w.Lexical
}

// Params carries raw search input for New.
type Params struct {
	Query   string
	Mode    string
	Filters filter.Filters
	Limit   int // 0 selects DefaultLimit
	Offset  int
	Scope   access.Scope
	Weights *Weights // nil selects the configured weights
}

// Request is a validated search query.
type Request struct {
	query   string
	mode    mode.Mode
	filters filter.Filters
	limit   int
	offset  int
	scope   access.Scope
	weights *Weights
}

// New validates search parameters. Every failure unwraps to domain.ErrInvalidRequest.
func New(p Params) (Request, error) {
	q := strings.TrimSpace(p.Query)
	if q == "" {
		return Request{}, domain.Invalid("query", "is required")
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return Request{}, domain.Invalid("query", fmt.Sprintf("too long (max %d chars)", MaxQueryLength))
	}
	m, ok := mode.Parse(p.Mode)
	if !ok {
		return Request{}, domain.Invalid("mode", fmt.Sprintf("unknown value %q", p.Mode))
	}
	limit := p.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return Request{}, domain.Invalid("limit", fmt.Sprintf("must be between 1 and %d", MaxLimit))
	}
	if p.Offset < 0 || p.Offset > MaxOffset {
		return Request{}, domain.Invalid("offset", fmt.Sprintf("must be between 0 and %d", MaxOffset))
	}
	if p.Weights != nil {
		if err := validateWeights(*p.Weights); err != nil {
			return Request{}, err
		}
	}

	return Request{
		query:   q,
		mode:    m,
		filters: p.Filters,
		limit:   limit,
		offset:  p.Offset,
		scope:   p.Scope,
		weights: p.Weights,
	}, nil
}

func validateWeights(w Weights) error {
	for _, v := range []float64{w.Lexical, w.Semantic} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.Invalid("weights", "must be finite and >= 0")
		}
	}
	if w.Lexical == 0 && w.Semantic == 0 {
		return domain.Invalid("weights", "at least one weight must be positive")
	}
	return nil
}

// Query returns the trimmed query text.
func (r *Request) Query() string { return r.query }

// Mode returns the resolved search mode.
func (r *Request) Mode() mode.Mode { return r.mode }

// Filters returns the optional restrictions.
func (r *Request) Filters() filter.Filters { return r.filters }

// Limit returns the page size.
func (r *Request) Limit() int { return r.limit }

// Offset returns the number of fused results to skip.
func (r *Request) Offset() int { return r.offset }

// Scope returns the access scope.
func (r *Request) Scope() access.Scope { return r.scope }

// Weights returns the request weights, falling back to def when none were given.
func (r *Request) Weights(def Weights) Weights {
	if r.weights == nil {
		return def
	}
	return *r.weights
}

// FetchLimit is the per-retriever candidate count: max(limit*3, floor).
// It ignores offset, so every page of one query fuses the same candidate set.
func (r *Request) FetchLimit(floor int) int {
	return max(r.limit*3, floor)
}
