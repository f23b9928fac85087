package filter

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// MaxTags is the maximum number of tags in one filter.
const MaxTags = 16

// Candidate is the subset of item attributes filters are evaluated against.
type Candidate interface {
	Tags() []string
	OwnerID() string
	WorkspaceID() string
	IsPublic() bool
	UsageCount() int
	CreatedAt() time.Time
}

// Params carries raw filter input for New.
type Params struct {
	Tags          []string
	IsPublic      Opt[bool]
	CreatedAfter  Opt[time.Time]
	CreatedBefore Opt[time.Time]
	WorkspaceID   Opt[string]
	MinUsage      Opt[int]
	AuthorID      Opt[string]
}

// Filters is a closed, validated set of optional search restrictions.
// Filters only ever narrow the access-filtered candidate pool.
type Filters struct {
	tags          []string
	isPublic      Opt[bool]
	createdAfter  Opt[time.Time]
	createdBefore Opt[time.Time]
	workspaceID   Opt[string]
	minUsage      Opt[int]
	authorID      Opt[string]
}

// New validates and creates Filters.
// Tags match if the item carries any of them. The date range is [after, before).
func New(p Params) (Filters, error) {
	if len(p.Tags) > MaxTags {
		return Filters{}, fmt.Errorf("too many tag filters (max %d)", MaxTags)
	}
	tags := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}

	after, hasAfter := p.CreatedAfter.Get()
	before, hasBefore := p.CreatedBefore.Get()
	if hasAfter && hasBefore && !after.Before(before) {
		return Filters{}, fmt.Errorf("created_after must be earlier than created_before")
	}
	if v, ok := p.MinUsage.Get(); ok && v < 0 {
		return Filters{}, fmt.Errorf("min_usage must be >= 0")
	}
	if v, ok := p.WorkspaceID.Get(); ok && v == "" {
		return Filters{}, fmt.Errorf("workspace_id must not be empty when set")
	}
	if v, ok := p.AuthorID.Get(); ok && v == "" {
		return Filters{}, fmt.Errorf("author_id must not be empty when set")
	}

	return Filters{
		tags:          tags,
		isPublic:      p.IsPublic,
		createdAfter:  p.CreatedAfter,
		createdBefore: p.CreatedBefore,
		workspaceID:   p.WorkspaceID,
		minUsage:      p.MinUsage,
		authorID:      p.AuthorID,
	}, nil
}

// Tags returns the normalized tag filter.
func (f Filters) Tags() []string { return f.tags }

// IsPublic returns the visibility filter.
func (f Filters) IsPublic() Opt[bool] { return f.isPublic }

// CreatedAfter returns the inclusive lower creation bound.
func (f Filters) CreatedAfter() Opt[time.Time] { return f.createdAfter }

// CreatedBefore returns the exclusive upper creation bound.
func (f Filters) CreatedBefore() Opt[time.Time] { return f.createdBefore }

// WorkspaceID returns the workspace filter.
func (f Filters) WorkspaceID() Opt[string] { return f.workspaceID }

// MinUsage returns the minimum usage count filter.
func (f Filters) MinUsage() Opt[int] { return f.minUsage }

// AuthorID returns the author (owner) filter.
func (f Filters) AuthorID() Opt[string] { return f.authorID }

// IsEmpty reports whether no restriction is set.
func (f Filters) IsEmpty() bool {
	return len(f.tags) == 0 && !f.isPublic.IsSet() && !f.createdAfter.IsSet() &&
		!f.createdBefore.IsSet() && !f.workspaceID.IsSet() && !f.minUsage.IsSet() && !f.authorID.IsSet()
}

// Matches evaluates the filters in memory. Backends without query-side filtering use it.
func (f Filters) Matches(c Candidate) bool {
	if len(f.tags) > 0 && !slices.ContainsFunc(c.Tags(), func(t string) bool {
		return slices.Contains(f.tags, strings.ToLower(t))
	}) {
		return false
	}
	if v, ok := f.isPublic.Get(); ok && c.IsPublic() != v {
		return false
	}
	if v, ok := f.createdAfter.Get(); ok && c.CreatedAt().Before(v) {
		return false
	}
	if v, ok := f.createdBefore.Get(); ok && !c.CreatedAt().Before(v) {
		return false
	}
	if v, ok := f.workspaceID.Get(); ok && c.WorkspaceID() != v {
		return false
	}
	if v, ok := f.minUsage.Get(); ok && c.UsageCount() < v {
		return false
	}
	if v, ok := f.authorID.Get(); ok && c.OwnerID() != v {
		return false
	}
	return true
}
