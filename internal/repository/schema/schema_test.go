package schema

import (
	"testing"
	"time"

	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
)

func testItem(t *testing.T) item.Item {
	t.Helper()
	it, err := item.New(item.Attrs{
		ID: "p-1", Title: "Customer Email Draft", Body: "Write a polite email",
		Tags: []string{"email", "Support"}, OwnerID: "u1", WorkspaceID: "ws-1",
		IsPublic: true, UsageCount: 7, CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("item.New: %v", err)
	}
	return it
}

func TestKeys(t *testing.T) {
	if got := ItemKey("p-1"); got != "promptdex:item:p-1" {
		t.Errorf("ItemKey = %q", got)
	}
	if got := ItemIDFromKey("promptdex:item:p-1"); got != "p-1" {
		t.Errorf("ItemIDFromKey = %q", got)
	}
	if got := VectorKey("nomic-embed-text:v1.5", "p-1"); got != "promptdex:vec:nomic-embed-text_v1_5:p-1" {
		t.Errorf("VectorKey = %q", got)
	}
	if got := VectorIndex("text-embedding-3-small"); got != "promptdex:vec:text-embedding-3-small:idx" {
		t.Errorf("VectorIndex = %q", got)
	}
	if got := HistoryKey("u1"); got != "promptdex:history:u1" {
		t.Errorf("HistoryKey = %q", got)
	}
}

func TestEncodeDecodeItem(t *testing.T) {
	it := testItem(t)
	m := EncodeItem(&it)
	if m[FieldVisibility] != VisibilityPublic || m[FieldTags] != "email,support" {
		t.Errorf("unexpected fields: %v", m)
	}
	got, ok := DecodeItem("ignored", m)
	if !ok {
		t.Fatal("DecodeItem returned !ok")
	}
	if got.ID() != "p-1" || got.Title() != it.Title() || got.UsageCount() != 7 || !got.IsPublic() {
		t.Errorf("decoded = %+v", got.Attrs())
	}
	if !got.CreatedAt().Equal(it.CreatedAt()) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt(), it.CreatedAt())
	}
	if len(got.Tags()) != 2 {
		t.Errorf("tags = %v", got.Tags())
	}
}

func TestDecodeItem_Empty(t *testing.T) {
	if _, ok := DecodeItem("p-1", map[string]string{}); ok {
		t.Error("empty hash must not decode")
	}
}

func TestVectorIndexDef(t *testing.T) {
	def, err := VectorIndexDef("m", 4, VectorIndexOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := def.Fields[len(def.Fields)-1]
	if last.Name != FieldVector || last.VectorDim != 4 {
		t.Errorf("vector field = %+v", last)
	}
	if _, err := VectorIndexDef("m", 0, VectorIndexOptions{}); err == nil {
		t.Error("expected error for zero dims")
	}
}

func TestAccessClause(t *testing.T) {
	tests := []struct {
		name  string
		scope access.Scope
		want  string
	}{
		{"anonymous public", access.NewScope(access.Principal{WorkspaceID: "ws"}, true), "@visibility:{public}"},
		{"anonymous private", access.NewScope(access.Principal{}, false), ""},
		{"owner only", access.NewScope(access.Principal{UserID: "u1"}, false), "@owner_id:{u1}"},
		{
			"all branches",
			access.NewScope(access.Principal{UserID: "u1", WorkspaceID: "ws-1"}, true),
			`(@visibility:{public} | @owner_id:{u1} | @workspace_id:{ws\-1})`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AccessClause(tt.scope); got != tt.want {
				t.Errorf("AccessClause = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrefilter(t *testing.T) {
	after := time.UnixMilli(1000)
	before := time.UnixMilli(2000)
	f, err := filter.New(filter.Params{
		Tags:          []string{"email"},
		IsPublic:      filter.Some(false),
		CreatedAfter:  filter.Some(after),
		CreatedBefore: filter.Some(before),
		MinUsage:      filter.Some(3),
	})
	if err != nil {
		t.Fatal(err)
	}
	got := Prefilter(f, access.NewScope(access.Principal{UserID: "u1"}, false))
	want := "(@owner_id:{u1} @tags:{email} @visibility:{private} @created_at:[1000 (2000] @usage_count:[3 +inf])"
	if got != want {
		t.Errorf("Prefilter =\n%q\nwant\n%q", got, want)
	}

	empty, _ := filter.New(filter.Params{})
	if got := Prefilter(empty, access.Scope{}); got != "*" {
		t.Errorf("empty Prefilter = %q, want *", got)
	}
}
