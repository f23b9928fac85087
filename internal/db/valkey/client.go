// Package valkey connects to Valkey with the valkey-search module.
package valkey

import (
	"fmt"

	dbredis "github.com/kailas-cloud/promptdex/internal/db/redis"
)

// NewStore creates a store for Valkey. valkey-search indexes TAG, NUMERIC and VECTOR fields only,
// so text search is always off and lexical queries run on the scan path.
func NewStore(cfg dbredis.Config) (*dbredis.Store, error) {
	cfg.TextSearch = false
	s, err := dbredis.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("valkey: %w", err)
	}
	return s, nil
}
