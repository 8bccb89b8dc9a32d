package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript admits one request for KEYS[1] unless KEYS[2] blocks it.
// ARGV: limit, window ms, block ms. Returns {allowed, remaining, reset ms}.
var fixedWindowScript = redis.NewScript(`
local counter = KEYS[1]
local block = KEYS[2]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local blockms = tonumber(ARGV[3])

local bttl = redis.call('PTTL', block)
if bttl > 0 then
  return {0, 0, bttl}
end

local count = tonumber(redis.call('GET', counter) or '0')
if count >= limit then
  if blockms > 0 then
    redis.call('SET', block, '1', 'PX', blockms)
    return {0, 0, blockms}
  end
  local ttl = redis.call('PTTL', counter)
  if ttl < 0 then ttl = window end
  return {0, 0, ttl}
end

count = redis.call('INCR', counter)
local ttl = redis.call('PTTL', counter)
if count == 1 or ttl < 0 then
  redis.call('PEXPIRE', counter, window)
  ttl = window
end
return {1, limit - count, ttl}
`)

// RedisLimiter keeps counters in redis so every instance shares them.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

// NewRedisLimiter constructs a RedisLimiter. Keys are namespaced by prefix.
func NewRedisLimiter(client redis.Scripter, prefix string) *RedisLimiter {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "formgate"
	}
	return &RedisLimiter{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) keys(key string) []string {
	base := l.prefix + ":rl:" + key
	return []string{base, base + ":block"}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (*Decision, error) {
	if !rule.valid() {
		return nil, errInvalidRule
	}
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("ratelimit: redis limiter not configured")
	}
	res, errRun := fixedWindowScript.Run(ctx, l.client, l.keys(key),
		rule.Limit, rule.Window.Milliseconds(), rule.Block.Milliseconds()).Int64Slice()
	if errRun != nil {
		return nil, fmt.Errorf("ratelimit: redis script: %w", errRun)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("ratelimit: redis script returned %d values", len(res))
	}
	return &Decision{
		Allowed:   res[0] == 1,
		Limit:     rule.Limit,
		Remaining: res[1],
		ResetAt:   l.now().Add(time.Duration(res[2]) * time.Millisecond),
	}, nil
}
