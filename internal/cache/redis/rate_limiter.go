package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// RateLimiter is a fixed-window counter shared by every API replica that
// talks to the same Redis.
type RateLimiter struct {
	rdb *redis.Client
	now func() time.Time
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates a RateLimiter backed by c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying(), now: time.Now}
}

// windowKey buckets key by the window the instant falls into.
func windowKey(key string, at time.Time, window time.Duration) string {
	return fmt.Sprintf("ratelimit:%s:%d", key, at.UnixMilli()/window.Milliseconds())
}

// Allow counts one request against key and reports whether it fits in the
// current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window < time.Millisecond {
		window = time.Millisecond
	}
	k := windowKey(key, rl.now(), window)

	var incr *redis.IntCmd
	_, err := rl.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.PExpire(ctx, k, 2*window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return incr.Val() <= int64(limit), nil
}
