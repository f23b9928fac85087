package item

import (
	"strings"
	"testing"
	"time"
)

func validAttrs() Attrs {
	return Attrs{
		ID:      "prompt-1",
		Title:   "Customer Onboarding Email",
		Body:    "Write a warm onboarding email.",
		Tags:    []string{"Email", " onboarding ", "email"},
		OwnerID: "user-1",
	}
}

func TestNew_NormalizesTags(t *testing.T) {
	it, err := New(validAttrs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags := it.Tags()
	if len(tags) != 2 || tags[0] != "email" || tags[1] != "onboarding" {
		t.Errorf("tags = %v, want [email onboarding]", tags)
	}
	if !it.HasTag("EMAIL") {
		t.Error("HasTag should be case-insensitive")
	}
}

func TestNew_DefaultsCreatedAt(t *testing.T) {
	before := time.Now().Add(-time.Second)
	it, err := New(validAttrs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.CreatedAt().Before(before) {
		t.Errorf("createdAt = %v, expected now", it.CreatedAt())
	}
	if it.CreatedAt().Location() != time.UTC {
		t.Error("createdAt must be UTC")
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Attrs)
		want   string
	}{
		{"empty id", func(a *Attrs) { a.ID = "" }, "ID is required"},
		{"bad id", func(a *Attrs) { a.ID = "a b" }, "alphanumeric"},
		{"long id", func(a *Attrs) { a.ID = strings.Repeat("a", MaxIDLength+1) }, "too long"},
		{"blank title", func(a *Attrs) { a.Title = "   " }, "title is required"},
		{"no owner", func(a *Attrs) { a.OwnerID = "" }, "owner ID"},
		{"negative usage", func(a *Attrs) { a.UsageCount = -1 }, "usage count"},
		{"comma tag", func(a *Attrs) { a.Tags = []string{"a,b"} }, "commas"},
		{"huge body", func(a *Attrs) { a.Body = strings.Repeat("x", MaxBodySize+1) }, "body too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAttrs()
			tt.mutate(&a)
			_, err := New(a)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestEmbeddingText(t *testing.T) {
	it := Reconstruct(Attrs{ID: "x", Title: "Title"})
	if it.EmbeddingText() != "Title" {
		t.Errorf("got %q", it.EmbeddingText())
	}
	it = Reconstruct(Attrs{ID: "x", Title: "Title", Body: "Body"})
	if it.EmbeddingText() != "Title\n\nBody" {
		t.Errorf("got %q", it.EmbeddingText())
	}
}

func TestAttrs_RoundTripsThroughReconstruct(t *testing.T) {
	it, err := New(validAttrs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back := Reconstruct(it.Attrs())
	if back.ID() != it.ID() || back.Title() != it.Title() || !back.CreatedAt().Equal(it.CreatedAt()) {
		t.Errorf("reconstructed item differs: %+v vs %+v", back, it)
	}
}
