package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/history"
)

// History keeps the newest entries of each user in search_history.
type History struct {
	db         dbtx
	maxPerUser int
	ttl        time.Duration
}

// NewHistory creates the history repository.
func NewHistory(db dbtx, maxPerUser int, ttl time.Duration) *History {
	if maxPerUser <= 0 {
		maxPerUser = 100
	}
	if ttl <= 0 {
		ttl = 90 * 24 * time.Hour
	}
	return &History{db: db, maxPerUser: maxPerUser, ttl: ttl}
}

// Record inserts an entry and trims the user's rows beyond maxPerUser or older than the TTL.
func (r *History) Record(ctx context.Context, e history.Entry) error {
	if e.UserID == "" {
		return fmt.Errorf("%w: entry has no user", domain.ErrHistoryWriteFailure)
	}
	id, err := uuid.Parse(e.ID)
	if err != nil {
		id = uuid.New()
	}

	b := &pgx.Batch{}
	b.Queue(`INSERT INTO search_history (id, user_id, query, mode, result_count, filters, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, id, e.UserID, e.Query, e.Mode, e.ResultCount, e.Filters, e.CreatedAt)
	b.Queue(`DELETE FROM search_history WHERE user_id = $1 AND (created_at < $2 OR id NOT IN (
	SELECT id FROM search_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $3))`,
		e.UserID, e.CreatedAt.Add(-r.ttl), r.maxPerUser)

	br := r.db.SendBatch(ctx, b)
	defer br.Close()
	for range 2 {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrHistoryWriteFailure, err)
		}
	}
	return nil
}

// Recent returns up to n entries of the user, newest first.
func (r *History) Recent(ctx context.Context, userID string, n int) ([]history.Entry, error) {
	if userID == "" || n <= 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, user_id, query, mode, result_count, filters, created_at
FROM search_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("recent history %s: %w", userID, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Entry, error) {
		var e history.Entry
		var id uuid.UUID
		var count int32
		err := row.Scan(&id, &e.UserID, &e.Query, &e.Mode, &count, &e.Filters, &e.CreatedAt)
		e.ID = id.String()
		e.ResultCount = int(count)
		e.CreatedAt = e.CreatedAt.UTC()
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("recent history %s: %w", userID, err)
	}
	return entries, nil
}
