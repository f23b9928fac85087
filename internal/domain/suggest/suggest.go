// Package suggest holds autocomplete candidates and the trigram similarity used to rank titles.
package suggest

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/kailas-cloud/promptdex/internal/domain/item"
)

// Source is the tier a suggestion came from.
type Source string

// Suggestion sources.
const (
	SourceHistory Source = "history"
	SourceTitle   Source = "title"
	SourceTag     Source = "tag"
)

// Fixed similarities.
const (
	HistorySimilarity   = 1.0
	SubstringSimilarity = 0.5
	DefaultTrigramFloor = 0.1
)

// Candidate is one autocomplete suggestion.
type Candidate struct {
	Text       string
	Source     Source
	Similarity float64
}

// TagCount is a tag with its occurrence count among accessible items.
type TagCount struct {
	Tag   string
	Count int
}

// Trigrams returns the padded trigram set of s, following pg_trgm:
// each lower-cased alphanumeric word is padded with two leading and one trailing space.
func Trigrams(s string) map[string]struct{} {
	out := make(map[string]struct{})
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		r := []rune("  " + w + " ")
		for i := 0; i+3 <= len(r); i++ {
			out[string(r[i:i+3])] = struct{}{}
		}
	}
	return out
}

// Similarity is the trigram similarity of a and b: shared / union, in [0,1].
func Similarity(a, b string) float64 {
	ta, tb := Trigrams(a), Trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}

// ContainsFold reports whether s contains substr, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// SortBySimilarity orders candidates by similarity descending, then alphabetically.
func SortBySimilarity(cs []Candidate) {
	slices.SortStableFunc(cs, func(a, b Candidate) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return strings.Compare(strings.ToLower(a.Text), strings.ToLower(b.Text))
	})
}

// SortTagCounts orders tags by count descending, then alphabetically.
func SortTagCounts(tc []TagCount) {
	slices.SortFunc(tc, func(a, b TagCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Tag, b.Tag)
	})
}

// CountTags counts tags containing prefix across items and returns the top limit.
func CountTags(items []item.Item, prefix string, limit int) []TagCount {
	counts := make(map[string]int)
	for i := range items {
		for _, t := range items[i].Tags() {
			if ContainsFold(t, prefix) {
				counts[t]++
			}
		}
	}
	out := make([]TagCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TagCount{Tag: t, Count: n})
	}
	SortTagCounts(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
