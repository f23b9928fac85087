package request

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
)

// Autocomplete limits.
const (
	DefaultSuggestLimit = 8
	MaxSuggestLimit     = 20
	MaxPrefixLength     = 100
)

// SuggestParams carries raw autocomplete input.
type SuggestParams struct {
	Prefix         string
	Limit          int
	IncludeHistory bool
	Scope          access.Scope
}

// Suggest is a validated autocomplete query.
type Suggest struct {
	prefix         string
	limit          int
	includeHistory bool
	scope          access.Scope
}

// NewSuggest validates autocomplete parameters. A blank prefix is allowed and yields no suggestions.
func NewSuggest(p SuggestParams) (Suggest, error) {
	prefix := strings.TrimSpace(p.Prefix)
	if utf8.RuneCountInString(prefix) > MaxPrefixLength {
		return Suggest{}, domain.Invalid("q", fmt.Sprintf("too long (max %d chars)", MaxPrefixLength))
	}
	limit := p.Limit
	if limit == 0 {
		limit = DefaultSuggestLimit
	}
	if limit < 1 || limit > MaxSuggestLimit {
		return Suggest{}, domain.Invalid("limit", fmt.Sprintf("must be between 1 and %d", MaxSuggestLimit))
	}
	return Suggest{
		prefix:         prefix,
		limit:          limit,
		includeHistory: p.IncludeHistory && !p.Scope.Principal.IsAnonymous(),
		scope:          p.Scope,
	}, nil
}

// Prefix returns the trimmed prefix.
func (s *Suggest) Prefix() string { return s.prefix }

// Limit returns the maximum suggestions.
func (s *Suggest) Limit() int { return s.limit }

// IncludeHistory reports whether the principal's history tier is consulted.
func (s *Suggest) IncludeHistory() bool { return s.includeHistory }

// Scope returns the access scope.
func (s *Suggest) Scope() access.Scope { return s.scope }
