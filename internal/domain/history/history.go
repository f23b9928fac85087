// Package history models per-user search history entries.
package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
)

// Entry is one recorded search.
type Entry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Query       string    `json:"query"`
	Mode        string    `json:"mode"`
	ResultCount int       `json:"result_count"`
	Filters     *Filters  `json:"filters,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filters is the stored form of the filters a search ran with. Unset fields are nil.
type Filters struct {
	Tags          []string   `json:"tags,omitempty"`
	IsPublic      *bool      `json:"is_public,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	WorkspaceID   *string    `json:"workspace_id,omitempty"`
	MinUsage      *int       `json:"min_usage,omitempty"`
	AuthorID      *string    `json:"author_id,omitempty"`
}

// FiltersOf snapshots f. It returns nil when no filter is set.
func FiltersOf(f filter.Filters) *Filters {
	if f.IsEmpty() {
		return nil
	}
	return &Filters{
		Tags:          f.Tags(),
		IsPublic:      ptr(f.IsPublic()),
		CreatedAfter:  ptr(f.CreatedAfter()),
		CreatedBefore: ptr(f.CreatedBefore()),
		WorkspaceID:   ptr(f.WorkspaceID()),
		MinUsage:      ptr(f.MinUsage()),
		AuthorID:      ptr(f.AuthorID()),
	}
}

func ptr[T any](o filter.Opt[T]) *T {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return &v
}

// NewEntry creates an entry with a fresh id.
func NewEntry(userID, query, mode string, resultCount int, f filter.Filters, now time.Time) Entry {
	return Entry{
		ID:          uuid.New().String(),
		UserID:      userID,
		Query:       query,
		Mode:        mode,
		ResultCount: resultCount,
		Filters:     FiltersOf(f),
		CreatedAt:   now.UTC(),
	}
}
