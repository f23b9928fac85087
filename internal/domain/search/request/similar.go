package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
)

// DefaultSimilarThreshold is the cosine floor for FindSimilar.
const DefaultSimilarThreshold = 0.70

// SimilarParams carries raw FindSimilar input.
type SimilarParams struct {
	ItemID    string
	Threshold *float64 // nil selects the configured default
	Limit     int
	Scope     access.Scope
}

// Similar is a validated FindSimilar query.
type Similar struct {
	itemID    string
	threshold float64
	limit     int
	scope     access.Scope
}

// NewSimilar validates FindSimilar parameters; defThreshold applies when none is given.
func NewSimilar(p SimilarParams, defThreshold float64) (Similar, error) {
	id := strings.TrimSpace(p.ItemID)
	if id == "" {
		return Similar{}, domain.Invalid("item_id", "is required")
	}
	threshold := defThreshold
	if p.Threshold != nil {
		threshold = *p.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return Similar{}, domain.Invalid("threshold", "must be between 0 and 1")
	}
	limit := p.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return Similar{}, domain.Invalid("limit", fmt.Sprintf("must be between 1 and %d", MaxLimit))
	}
	return Similar{itemID: id, threshold: threshold, limit: limit, scope: p.Scope}, nil
}

// ItemID returns the reference item.
func (s *Similar) ItemID() string { return s.itemID }

// Threshold returns the minimum cosine similarity.
func (s *Similar) Threshold() float64 { return s.threshold }

// Limit returns the maximum results.
func (s *Similar) Limit() int { return s.limit }

// Scope returns the access scope.
func (s *Similar) Scope() access.Scope { return s.scope }
