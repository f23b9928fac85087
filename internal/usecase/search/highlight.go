package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/promptdex/internal/domain/item"
)

// Highlight markup.
const (
	markOpen        = "<mark>"
	markClose       = "</mark>"
	snippetRadius   = 80 // bytes of context on each side of the first body match
	minHighlightLen = 2
)

// highlighter marks query terms in item text. It never affects ranking.
type highlighter struct {
	re *regexp.Regexp
}

// newHighlighter compiles a case-insensitive matcher over the query terms.
// Returns nil when the query has no usable terms.
func newHighlighter(query string) *highlighter {
	seen := make(map[string]struct{})
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		t = strings.Trim(t, `"'.,;:!?()[]{}`)
		if utf8.RuneCountInString(t) < minHighlightLen {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, regexp.QuoteMeta(t))
	}
	if len(terms) == 0 {
		return nil
	}
	// longest first so overlapping terms prefer the longer match
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
	return &highlighter{re: regexp.MustCompile("(?i)" + strings.Join(terms, "|"))}
}

// For returns the marked title when it matches, otherwise a marked snippet of the body.
// Empty when neither matches.
func (h *highlighter) For(it *item.Item) string {
	if h == nil {
		return ""
	}
	if h.re.MatchString(it.Title()) {
		return h.mark(it.Title())
	}
	body := it.Body()
	loc := h.re.FindStringIndex(body)
	if loc == nil {
		return ""
	}
	start := clampRune(body, loc[0]-snippetRadius)
	end := clampRune(body, loc[1]+snippetRadius)
	snippet := h.mark(body[start:end])
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(body) {
		snippet += "…"
	}
	return snippet
}

func (h *highlighter) mark(s string) string {
	return h.re.ReplaceAllStringFunc(s, func(m string) string { return markOpen + m + markClose })
}

// clampRune bounds i to [0, len(s)] and moves it back to a rune boundary.
func clampRune(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
