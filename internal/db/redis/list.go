package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/promptdex/internal/db"
)

// PushCapped runs LPUSH, LTRIM and EXPIRE in one DoMulti round-trip.
func (s *Store) PushCapped(ctx context.Context, key string, maxLen int, ttl time.Duration, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	cmds := []rueidis.Completed{
		s.b().Lpush().Key(key).Element(values...).Build(),
	}
	if maxLen > 0 {
		cmds = append(cmds, s.b().Ltrim().Key(key).Start(0).Stop(int64(maxLen-1)).Build())
	}
	if ttl > 0 {
		cmds = append(cmds, s.b().Expire().Key(key).Seconds(int64(ttl.Seconds())).Build())
	}

	for _, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpLPush, Err: err}
		}
	}
	return nil
}

// LRange returns list elements between start and stop (inclusive, negative from the tail).
func (s *Store) LRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	cmd := s.b().Lrange().Key(key).Start(int64(start)).Stop(int64(stop)).Build()
	out, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpLRange, Err: err}
	}
	return out, nil
}
