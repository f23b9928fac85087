package result

import (
	"math"
	"time"

	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/mode"
)

// Hit is one candidate returned by a retriever, ranked by Score descending.
type Hit struct {
	ItemID    string
	Score     float64
	Highlight string
}

// Breakdown holds each contributing source's local score and the combined score.
// A nil source means the item was absent from that source's list.
type Breakdown struct {
	Lexical  *float64
	Semantic *float64
	Combined float64
}

// Of returns the local score of a source, if present.
func (b Breakdown) Of(s mode.Source) (float64, bool) {
	p := b.Lexical
	if s == mode.SourceSemantic {
		p = b.Semantic
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Scored is one fused, ranked result.
type Scored struct {
	ItemID        string
	Rank          int // 1-based
	CombinedScore float64
	Breakdown     Breakdown
	Highlight     string
	Item          item.Item
}

// Page is the response of a search or find-similar call.
type Page struct {
	Results  []Scored
	Total    int
	Query    string
	Mode     mode.Mode
	Duration time.Duration
	Degraded bool
	Sources  []mode.Source
}

// Round3 rounds a score to three decimals for presentation.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Ptr returns a pointer to a rounded score.
func Ptr(v float64) *float64 {
	r := Round3(v)
	return &r
}
