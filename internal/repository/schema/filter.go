package schema

import (
	"github.com/kailas-cloud/promptdex/internal/db"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
)

// AccessClause renders the access rule as an FT pre-filter.
// The caller must short-circuit when scope.IsEmpty(); an empty scope renders "".
func AccessClause(scope access.Scope) string {
	var branches []string
	if scope.IncludePublic {
		branches = append(branches, db.TagAny(FieldVisibility, VisibilityPublic))
	}
	p := scope.Principal
	if !p.IsAnonymous() {
		branches = append(branches, db.TagAny(FieldOwnerID, p.UserID))
		if p.WorkspaceID != "" {
			branches = append(branches, db.TagAny(FieldWorkspaceID, p.WorkspaceID))
		}
	}
	return db.Or(branches...)
}

// FilterClauses renders optional filters as FT clauses.
func FilterClauses(f filter.Filters) []string {
	var out []string
	if tags := f.Tags(); len(tags) > 0 {
		out = append(out, db.TagAny(FieldTags, tags...))
	}
	if v, ok := f.IsPublic().Get(); ok {
		vis := VisibilityPrivate
		if v {
			vis = VisibilityPublic
		}
		out = append(out, db.TagAny(FieldVisibility, vis))
	}
	after, hasAfter := f.CreatedAfter().Get()
	before, hasBefore := f.CreatedBefore().Get()
	if hasAfter || hasBefore {
		var lo, hi string
		if hasAfter {
			lo = db.Inclusive(after.UnixMilli())
		}
		if hasBefore {
			hi = db.Exclusive(before.UnixMilli())
		}
		out = append(out, db.NumericRange(FieldCreatedAt, lo, hi))
	}
	if v, ok := f.WorkspaceID().Get(); ok {
		out = append(out, db.TagAny(FieldWorkspaceID, v))
	}
	if v, ok := f.MinUsage().Get(); ok {
		out = append(out, db.NumericRange(FieldUsageCount, db.Inclusive(int64(v)), ""))
	}
	if v, ok := f.AuthorID().Get(); ok {
		out = append(out, db.TagAny(FieldOwnerID, v))
	}
	return out
}

// Prefilter combines access and filters into one FT query.
func Prefilter(f filter.Filters, scope access.Scope) string {
	q := db.And(append([]string{AccessClause(scope)}, FilterClauses(f)...)...)
	if q == "" {
		return db.MatchAll
	}
	return q
}
