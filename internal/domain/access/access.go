// Package access decides which items a principal may see.
package access

// Principal is the caller resolved by the gateway. An empty UserID means anonymous.
type Principal struct {
	UserID      string
	WorkspaceID string
}

// IsAnonymous reports whether no user could be resolved.
func (p Principal) IsAnonymous() bool { return p.UserID == "" }

// Scope is a principal plus the includePublic flag of one request.
// Every retriever receives the same Scope and must apply it to its own candidate universe.
type Scope struct {
	Principal     Principal
	IncludePublic bool
}

// NewScope creates a Scope.
func NewScope(p Principal, includePublic bool) Scope {
	return Scope{Principal: p, IncludePublic: includePublic}
}

// Visible is the subset of item attributes the access rule depends on.
type Visible interface {
	OwnerID() string
	WorkspaceID() string
	IsPublic() bool
}

// IsVisible reports whether item may appear in any result for principal.
// Anonymous principals only ever match the public branch, even when a workspace is set.
func IsVisible(item Visible, p Principal, includePublic bool) bool {
	if includePublic && item.IsPublic() {
		return true
	}
	if p.IsAnonymous() {
		return false
	}
	if item.OwnerID() == p.UserID {
		return true
	}
	return p.WorkspaceID != "" && item.WorkspaceID() == p.WorkspaceID
}

// Allows applies IsVisible with the scope's principal and flag.
func (s Scope) Allows(item Visible) bool {
	return IsVisible(item, s.Principal, s.IncludePublic)
}

// IsEmpty reports whether no item can ever be visible under this scope.
// Backends skip the query entirely in that case.
func (s Scope) IsEmpty() bool {
	return s.Principal.IsAnonymous() && !s.IncludePublic
}
