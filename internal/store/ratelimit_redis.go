package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/associates-api/internal/ratelimit"
)

// recordScript increments a fixed-window counter and starts the window on
// the first request.
//
// KEYS[1] = counter key
// ARGV[1] = window length in milliseconds
// Returns {count, milliseconds until the window ends}.
var recordScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RateLimitRedisStore is a Redis fixed-window implementation of ratelimit.Store.
// Counters expire with their window, so idle clients need no cleanup.
type RateLimitRedisStore struct {
	client *redis.Client
	prefix string
}

// NewRateLimitRedisStore creates a new Redis-backed rate limit store.
func NewRateLimitRedisStore(client *redis.Client) *RateLimitRedisStore {
	return &RateLimitRedisStore{
		client: client,
		prefix: "ratelimit:",
	}
}

func (s *RateLimitRedisStore) Record(ctx context.Context, key string, window time.Duration) (ratelimit.Usage, error) {
	res, err := recordScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return ratelimit.Usage{}, fmt.Errorf("record rate limit: %w", err)
	}

	if len(res) != 2 {
		return ratelimit.Usage{}, fmt.Errorf("record rate limit: unexpected reply %v", res)
	}

	return ratelimit.Usage{
		Count:   res[0],
		ResetAt: time.Now().Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

// Compile-time check.
var _ ratelimit.Store = (*RateLimitRedisStore)(nil)
