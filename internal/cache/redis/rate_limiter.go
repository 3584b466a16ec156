package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)

// windowLua increments the counter and starts the window on first use.
const windowLua = `
local n = redis.call('INCR', KEYS[1])
if n == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`

// RateLimiter implements domain.RateLimiter as a fixed-window counter.
type RateLimiter struct {
	c      *Client
	script *redis.Script
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{c: c, script: redis.NewScript(windowLua)}
}

// Allow increments the counter for key and reports whether it is still
// within limit for the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := rl.c.Key("ratelimit:" + key)
	n, err := rl.script.Run(ctx, rl.c.rdb, []string{k}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return n <= int64(limit), nil
}
