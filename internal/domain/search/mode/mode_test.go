package mode

import (
	"slices"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"", Hybrid, true},
		{"HYBRID", Hybrid, true},
		{" keyword ", Keyword, true},
		{"FULLTEXT", FullText, true},
		{"full-text", FullText, true},
		{"semantic", Semantic, true},
		{"vector", "vector", false},
		{"geo", "geo", false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Parse(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSources(t *testing.T) {
	if got := Hybrid.Sources(); !slices.Equal(got, []Source{SourceLexical, SourceSemantic}) {
		t.Errorf("Hybrid.Sources() = %v", got)
	}
	if got := Keyword.Sources(); !slices.Equal(got, []Source{SourceLexical}) {
		t.Errorf("Keyword.Sources() = %v", got)
	}
	if got := Semantic.Sources(); !slices.Equal(got, []Source{SourceSemantic}) {
		t.Errorf("Semantic.Sources() = %v", got)
	}
	if Mode("bogus").Sources() != nil {
		t.Error("invalid mode must have no sources")
	}
}

func TestNeedsEmbedding(t *testing.T) {
	if Keyword.NeedsEmbedding() || FullText.NeedsEmbedding() {
		t.Error("lexical modes must not embed")
	}
	if !Semantic.NeedsEmbedding() || !Hybrid.NeedsEmbedding() {
		t.Error("semantic and hybrid must embed")
	}
}
