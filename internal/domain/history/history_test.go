package history

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
)

func TestFiltersOf_Empty(t *testing.T) {
	if got := FiltersOf(filter.Filters{}); got != nil {
		t.Errorf("FiltersOf(empty) = %+v, want nil", got)
	}
}

func TestNewEntry_KeepsFilters(t *testing.T) {
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f, err := filter.New(filter.Params{
		Tags:         []string{"Sales", "email"},
		IsPublic:     filter.Some(false),
		CreatedAfter: filter.Some(after),
		WorkspaceID:  filter.Some("acme"),
	})
	if err != nil {
		t.Fatal(err)
	}

	e := NewEntry("u1", "cold email", "hybrid", 4, f, after.Add(time.Hour))
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var back Entry
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}

	got := back.Filters
	if got == nil {
		t.Fatal("filters lost in encoding")
	}
	if len(got.Tags) != 2 || got.Tags[0] != "sales" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.IsPublic == nil || *got.IsPublic {
		t.Errorf("is_public = %v, want false", got.IsPublic)
	}
	if got.CreatedAfter == nil || !got.CreatedAfter.Equal(after) {
		t.Errorf("created_after = %v", got.CreatedAfter)
	}
	if got.WorkspaceID == nil || *got.WorkspaceID != "acme" {
		t.Errorf("workspace_id = %v", got.WorkspaceID)
	}
	if got.CreatedBefore != nil || got.MinUsage != nil || got.AuthorID != nil {
		t.Errorf("unset filters were stored: %+v", got)
	}
}
