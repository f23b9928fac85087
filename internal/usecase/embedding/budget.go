package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/domain"
)

// BudgetAction defines behavior when token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request with domain.ErrEmbeddingQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// ParseBudgetAction maps a config value to a BudgetAction. Unknown values mean warn.
func ParseBudgetAction(s string) BudgetAction {
	if BudgetAction(s) == BudgetActionReject {
		return BudgetActionReject
	}
	return BudgetActionWarn
}

// Path tells which side of the engine an embedding call serves.
type Path string

const (
	// PathQuery embeds search text on the request critical path.
	PathQuery Path = "query"
	// PathDocument embeds item text for upserts and backfill.
	PathDocument Path = "document"
)

var paths = []Path{PathQuery, PathDocument}

// BudgetStore persists per-path token counters.
type BudgetStore interface {
	Add(ctx context.Context, provider, path string, tokens int64, at time.Time) error
	Load(ctx context.Context, provider, path string, at time.Time) (daily, monthly int64, err error)
}

type pathUsage struct {
	daily   int64
	monthly int64
}

// BudgetTracker counts provider tokens per path against one daily and one monthly limit.
// Queries may spend the whole limit. Documents stop at documentShare of it,
// so a backfill cannot drain the tokens live search depends on.
type BudgetTracker struct {
	mu            sync.Mutex
	used          map[Path]*pathUsage
	dailyLimit    int64
	monthlyLimit  int64
	documentShare float64
	action        BudgetAction
	provider      string
	day           time.Time
	month         time.Time
	store         BudgetStore
	now           func() time.Time
	logger        *zap.Logger
}

// BudgetOption configures a BudgetTracker.
type BudgetOption func(*BudgetTracker)

// WithDocumentShare caps document embedding at share of each limit. 0 or 1 disables the cap.
func WithDocumentShare(share float64) BudgetOption {
	return func(b *BudgetTracker) {
		if share > 0 && share < 1 {
			b.documentShare = share
		}
	}
}

func withClock(now func() time.Time) BudgetOption {
	return func(b *BudgetTracker) { b.now = now }
}

// NewBudgetTracker creates a budget tracker. A zero limit means unlimited.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger, opts ...BudgetOption,
) *BudgetTracker {
	b := &BudgetTracker{
		used:         make(map[Path]*pathUsage, len(paths)),
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		provider:     provider,
		now:          time.Now,
		logger:       logger,
	}
	for _, p := range paths {
		b.used[p] = &pathUsage{}
	}
	for _, opt := range opts {
		opt(b)
	}
	now := b.now().UTC()
	b.day, b.month = truncateToDay(now), truncateToMonth(now)
	return b
}

// WithStore attaches a persistence store and loads the current counters of every path.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now().UTC()
	for _, p := range paths {
		daily, monthly, err := store.Load(ctx, b.provider, string(p), now)
		if err != nil {
			b.logger.Warn("Failed to load budget counters",
				zap.String("provider", b.provider), zap.String("path", string(p)), zap.Error(err))
			continue
		}
		b.used[p] = &pathUsage{daily: daily, monthly: monthly}
	}

	daily, monthly := b.totals()
	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", daily),
		zap.Int64("monthly_used", monthly),
		zap.Int64("document_daily_used", b.used[PathDocument].daily),
	)
	return b
}

// Check reports whether path may make another provider call. In-memory only.
// With action=reject an exhausted path gets an error wrapping domain.ErrEmbeddingQuotaExceeded.
func (b *BudgetTracker) Check(_ context.Context, path Path) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	period, exhausted := b.exhausted(path)
	if !exhausted {
		return nil
	}
	if b.action == BudgetActionReject {
		return fmt.Errorf("%w: %s path reached the %s limit", domain.ErrEmbeddingQuotaExceeded, path, period)
	}

	daily, monthly := b.totals()
	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.String("path", string(path)),
		zap.String("period", period),
		zap.Int64("daily_used", daily),
		zap.Int64("monthly_used", monthly),
	)
	return nil
}

// Record adds consumed tokens to path, then writes them behind to the store.
func (b *BudgetTracker) Record(path Path, tokens int64) {
	if tokens <= 0 {
		return
	}
	b.mu.Lock()
	b.rollover()
	u := b.used[path]
	u.daily += tokens
	u.monthly += tokens
	store := b.store
	now := b.now().UTC()
	b.mu.Unlock()

	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.Add(ctx, b.provider, string(path), tokens, now); err != nil {
		b.logger.Warn("Failed to persist budget counters",
			zap.String("provider", b.provider), zap.String("path", string(path)), zap.Error(err))
	}
}

// Remaining returns the tokens path may still spend today and this month. -1 means unlimited.
func (b *BudgetTracker) Remaining(path Path) (daily, monthly int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	dailyLimit, monthlyLimit := b.limits(path)
	dailyUsed, monthlyUsed := b.totals()
	return remaining(dailyLimit, dailyUsed), remaining(monthlyLimit, monthlyUsed)
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// BudgetSnapshot is a point-in-time view of the budget for /health.
type BudgetSnapshot struct {
	Provider         string                  `json:"provider"`
	Action           string                  `json:"action"`
	DailyLimit       int64                   `json:"daily_limit"`
	DailyUsed        int64                   `json:"daily_used"`
	MonthlyLimit     int64                   `json:"monthly_limit"`
	MonthlyUsed      int64                   `json:"monthly_used"`
	DocumentShare    float64                 `json:"document_share,omitempty"`
	Persisted        bool                    `json:"persisted"`
	DailyExhausted   bool                    `json:"daily_exhausted"`
	MonthlyExhausted bool                    `json:"monthly_exhausted"`
	Paths            map[string]PathSnapshot `json:"paths"`
}

// PathSnapshot is the usage of one path.
type PathSnapshot struct {
	DailyUsed   int64 `json:"daily_used"`
	MonthlyUsed int64 `json:"monthly_used"`
	Exhausted   bool  `json:"exhausted"`
}

// Snapshot returns the current counters under one lock.
// DailyExhausted and MonthlyExhausted describe the full limits, i.e. the query path.
func (b *BudgetTracker) Snapshot() BudgetSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	daily, monthly := b.totals()
	snap := BudgetSnapshot{
		Provider:         b.provider,
		Action:           string(b.action),
		DailyLimit:       b.dailyLimit,
		DailyUsed:        daily,
		MonthlyLimit:     b.monthlyLimit,
		MonthlyUsed:      monthly,
		DocumentShare:    b.documentShare,
		Persisted:        b.store != nil,
		DailyExhausted:   b.dailyLimit > 0 && daily >= b.dailyLimit,
		MonthlyExhausted: b.monthlyLimit > 0 && monthly >= b.monthlyLimit,
		Paths:            make(map[string]PathSnapshot, len(paths)),
	}
	for _, p := range paths {
		_, exhausted := b.exhausted(p)
		snap.Paths[string(p)] = PathSnapshot{
			DailyUsed:   b.used[p].daily,
			MonthlyUsed: b.used[p].monthly,
			Exhausted:   exhausted,
		}
	}
	return snap
}

// limits returns the caps path is checked against.
func (b *BudgetTracker) limits(path Path) (daily, monthly int64) {
	daily, monthly = b.dailyLimit, b.monthlyLimit
	if path == PathDocument && b.documentShare > 0 {
		daily, monthly = share(daily, b.documentShare), share(monthly, b.documentShare)
	}
	return daily, monthly
}

func share(limit int64, fraction float64) int64 {
	if limit == 0 {
		return 0
	}
	return max(int64(float64(limit)*fraction), 1)
}

// exhausted compares the spend of all paths with the caps of path.
func (b *BudgetTracker) exhausted(path Path) (period string, ok bool) {
	dailyLimit, monthlyLimit := b.limits(path)
	daily, monthly := b.totals()
	switch {
	case dailyLimit > 0 && daily >= dailyLimit:
		return "daily", true
	case monthlyLimit > 0 && monthly >= monthlyLimit:
		return "monthly", true
	}
	return "", false
}

func (b *BudgetTracker) totals() (daily, monthly int64) {
	for _, u := range b.used {
		daily += u.daily
		monthly += u.monthly
	}
	return daily, monthly
}

// rollover zeroes the counters when the UTC day or month changes.
func (b *BudgetTracker) rollover() {
	now := b.now().UTC()
	if today := truncateToDay(now); today.After(b.day) {
		for _, u := range b.used {
			u.daily = 0
		}
		b.day = today
	}
	if thisMonth := truncateToMonth(now); thisMonth.After(b.month) {
		for _, u := range b.used {
			u.monthly = 0
		}
		b.month = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
