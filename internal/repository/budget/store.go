// Package budget persists embedding token counters in the key-value store.
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/promptdex/internal/domain"
)

// Counter keys keep every period of one provider and path in one hash slot:
//
//	promptdex:budget:{openai:query}:daily:2026-10-17
//	promptdex:budget:{openai:query}:monthly:2026-10
const (
	dailyLayout   = "2006-01-02"
	monthlyLayout = "2006-01"
)

// kv is the consumer interface for budget operations (ISP).
type kv interface {
	AddCounter(ctx context.Context, key string, delta int64, ttl time.Duration) error
	Counters(ctx context.Context, keys ...string) ([]int64, error)
}

// Store keeps per-path daily and monthly counters. Keys outlive their period by a margin
// and then expire on their own.
type Store struct {
	kv       kv
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store. Typical ttls are 48h and 62 days.
func New(s kv, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{kv: s, dailyTTL: dailyTTL, monthTTL: monthTTL}
}

// Add books tokens spent by path at the given time in both periods.
func (s *Store) Add(ctx context.Context, provider, path string, tokens int64, at time.Time) error {
	daily, monthly := keys(provider, path, at)
	if err := s.kv.AddCounter(ctx, daily, tokens, s.dailyTTL); err != nil {
		return fmt.Errorf("budget add %s: %w", daily, err)
	}
	if err := s.kv.AddCounter(ctx, monthly, tokens, s.monthTTL); err != nil {
		return fmt.Errorf("budget add %s: %w", monthly, err)
	}
	return nil
}

// Load returns what path has spent in the day and month containing at.
func (s *Store) Load(ctx context.Context, provider, path string, at time.Time) (daily, monthly int64, err error) {
	dailyKey, monthlyKey := keys(provider, path, at)
	vals, err := s.kv.Counters(ctx, dailyKey, monthlyKey)
	if err != nil {
		return 0, 0, fmt.Errorf("budget load %s/%s: %w", provider, path, err)
	}
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("budget load %s/%s: got %d counters", provider, path, len(vals))
	}
	return vals[0], vals[1], nil
}

func keys(provider, path string, at time.Time) (daily, monthly string) {
	at = at.UTC()
	base := fmt.Sprintf("%sbudget:{%s:%s}", domain.KeyPrefix, provider, path)
	return base + ":daily:" + at.Format(dailyLayout), base + ":monthly:" + at.Format(monthlyLayout)
}
