package mode

import "strings"

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Keyword is a case-insensitive substring match over title and body, bypassing the text index.
	Keyword Mode = "keyword"
	// FullText ranks by the text index relevance function.
	FullText Mode = "fulltext"
	// Semantic ranks by cosine similarity of embeddings.
	Semantic Mode = "semantic"
	// Hybrid fuses full-text and semantic rankings.
	Hybrid Mode = "hybrid"
)

// Source names a retrieval branch that can contribute to a ranking.
type Source string

// Retrieval sources.
const (
	SourceLexical  Source = "lexical"
	SourceSemantic Source = "semantic"
)

// Parse resolves a client-supplied mode name. Empty input means Hybrid.
func Parse(s string) (Mode, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return Hybrid, true
	case "full_text", "full-text":
		return FullText, true
	}
	m := Mode(s)
	return m, m.IsValid()
}

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Keyword || m == FullText || m == Semantic || m == Hybrid
}

// Sources lists the retrieval branches a mode runs, lexical first.
func (m Mode) Sources() []Source {
	switch m {
	case Keyword, FullText:
		return []Source{SourceLexical}
	case Semantic:
		return []Source{SourceSemantic}
	case Hybrid:
		return []Source{SourceLexical, SourceSemantic}
	}
	return nil
}

// NeedsEmbedding reports whether the query must be embedded.
func (m Mode) NeedsEmbedding() bool {
	return m == Semantic || m == Hybrid
}
