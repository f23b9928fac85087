package postgres

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
)

// where accumulates AND-ed conditions and their positional arguments.
type where struct {
	conds []string
	args  []any
}

// newWhere starts a builder whose first placeholders are taken by args.
func newWhere(args ...any) *where {
	return &where{args: args}
}

// arg binds v and returns its placeholder.
func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

// add appends a condition, replacing each "?" with the placeholder of the next value.
func (w *where) add(cond string, vals ...any) {
	var b strings.Builder
	i := 0
	for _, r := range cond {
		if r == '?' && i < len(vals) {
			b.WriteString(w.arg(vals[i]))
			i++
			continue
		}
		b.WriteRune(r)
	}
	w.conds = append(w.conds, b.String())
}

// String renders the conditions, or TRUE when there are none.
func (w *where) String() string {
	if len(w.conds) == 0 {
		return "TRUE"
	}
	return strings.Join(w.conds, " AND ")
}

// access adds the visibility rule for items aliased as i.
func (w *where) access(scope access.Scope) {
	var branches []string
	if scope.IncludePublic {
		branches = append(branches, "i.is_public")
	}
	p := scope.Principal
	if !p.IsAnonymous() {
		branches = append(branches, "i.owner_id = "+w.arg(p.UserID))
		if p.WorkspaceID != "" {
			branches = append(branches, "i.workspace_id = "+w.arg(p.WorkspaceID))
		}
	}
	if len(branches) == 0 {
		w.conds = append(w.conds, "FALSE")
		return
	}
	w.conds = append(w.conds, "("+strings.Join(branches, " OR ")+")")
}

// filters adds the optional request filters for items aliased as i.
func (w *where) filters(f filter.Filters) {
	if tags := f.Tags(); len(tags) > 0 {
		w.add("i.tags && ?", tags)
	}
	if v, ok := f.IsPublic().Get(); ok {
		w.add("i.is_public = ?", v)
	}
	if v, ok := f.CreatedAfter().Get(); ok {
		w.add("i.created_at >= ?", v)
	}
	if v, ok := f.CreatedBefore().Get(); ok {
		w.add("i.created_at < ?", v)
	}
	if v, ok := f.WorkspaceID().Get(); ok {
		w.add("i.workspace_id = ?", v)
	}
	if v, ok := f.MinUsage().Get(); ok {
		w.add("i.usage_count >= ?", v)
	}
	if v, ok := f.AuthorID().Get(); ok {
		w.add("i.owner_id = ?", v)
	}
}

// likeEscaper escapes LIKE wildcards for patterns using the default backslash escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
