// Package history persists per-user search history as capped Redis lists.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/history"
	"github.com/kailas-cloud/promptdex/internal/repository/schema"
)

// Defaults for the capped list.
const (
	DefaultMaxPerUser = 100
	DefaultTTL        = 90 * 24 * time.Hour
)

// store is the consumer interface for history lists (ISP).
type store interface {
	PushCapped(ctx context.Context, key string, maxLen int, ttl time.Duration, values ...string) error
	LRange(ctx context.Context, key string, start, stop int) ([]string, error)
}

// Repo keeps the newest entries of each user, newest first.
type Repo struct {
	store      store
	maxPerUser int
	ttl        time.Duration
}

// New creates a history repository. Zero values select the defaults.
func New(s store, maxPerUser int, ttl time.Duration) *Repo {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPerUser
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Repo{store: s, maxPerUser: maxPerUser, ttl: ttl}
}

// Record appends an entry to the user's list.
func (r *Repo) Record(ctx context.Context, e history.Entry) error {
	if e.UserID == "" {
		return fmt.Errorf("%w: entry has no user", domain.ErrHistoryWriteFailure)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: marshal entry: %w", domain.ErrHistoryWriteFailure, err)
	}
	if err := r.store.PushCapped(ctx, schema.HistoryKey(e.UserID), r.maxPerUser, r.ttl, string(data)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrHistoryWriteFailure, err)
	}
	return nil
}

// Recent returns up to n entries of the user, newest first. Malformed entries are skipped.
func (r *Repo) Recent(ctx context.Context, userID string, n int) ([]history.Entry, error) {
	if userID == "" || n <= 0 {
		return nil, nil
	}
	raw, err := r.store.LRange(ctx, schema.HistoryKey(userID), 0, n-1)
	if err != nil {
		return nil, fmt.Errorf("lrange history %s: %w", userID, err)
	}
	out := make([]history.Entry, 0, len(raw))
	for _, s := range raw {
		var e history.Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
