package duplicate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per fingerprint. Redis expiry removes
// time-based records, so a present key is always live.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "formgate"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(formID, fingerprint string) string {
	return s.prefix + ":dup:" + formID + ":" + fingerprint
}

// claimScript counts an attempt only while the hash holds fewer than
// ARGV[1] attempts. Expired hashes are already gone.
var claimScript = redis.NewScript(`
local attempts = tonumber(redis.call("HGET", KEYS[1], "attempts") or "0")
if attempts >= tonumber(ARGV[1]) then
	return 0
end
redis.call("HINCRBY", KEYS[1], "attempts", 1)
redis.call("HSET", KEYS[1], "strategy", ARGV[3], "last_seen_at", ARGV[4])
local ttl = tonumber(ARGV[2])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[1], ttl)
else
	redis.call("PERSIST", KEYS[1])
end
return 1
`)

var releaseScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
if redis.call("HINCRBY", KEYS[1], "attempts", -1) <= 0 then
	redis.call("DEL", KEYS[1])
end
return 1
`)

// Claim implements Store.
func (s *RedisStore) Claim(ctx context.Context, formID, fingerprint, strategy string, ttl time.Duration, limit int64) (bool, error) {
	admitted, errRun := claimScript.Run(ctx, s.client, []string{s.key(formID, fingerprint)},
		limit, ttl.Milliseconds(), strategy, s.now().UTC().Format(time.RFC3339)).Int64()
	if errRun != nil {
		return false, fmt.Errorf("duplicate: redis claim: %w", errRun)
	}
	return admitted == 1, nil
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, formID, fingerprint string) error {
	if errRun := releaseScript.Run(ctx, s.client, []string{s.key(formID, fingerprint)}).Err(); errRun != nil {
		return fmt.Errorf("duplicate: redis release: %w", errRun)
	}
	return nil
}
