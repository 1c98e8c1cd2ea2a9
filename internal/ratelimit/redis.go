package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores buckets in Redis hashes mutated through a Lua script,
// giving one atomic refill-and-take across all gateway instances.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a RedisBackend from a Redis URL.
func NewRedisBackend(redisURL string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return &RedisBackend{client: redis.NewClient(opts)}, nil
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func bucketKey(keyID string) string {
	return fmt.Sprintf("ratelimit:%s", keyID)
}

// takeTokenScript: KEYS[1] = bucket hash. ARGV: nowMs, ratePerMinute.
// Bucket fields: tokens (milli-tokens), ts (ms). New buckets start full.
// Returns {1, tokens} on admit, {0, retryAfterMs} on reject.
// The TTL keeps idle buckets from accumulating forever; 2 minutes covers a
// full refill of any configured rate.
var takeTokenScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local capacity = rate * 1000

local tokens = redis.call('HGET', KEYS[1], 'tokens')
local ts = tonumber(redis.call('HGET', KEYS[1], 'ts') or '0')

if tokens == false then
  tokens = capacity
else
  tokens = tonumber(tokens)
  local elapsed = now - ts
  if elapsed > 0 then
    tokens = math.min(capacity, tokens + math.floor(elapsed * rate / 60))
  end
end

if tokens >= 1000 then
  tokens = tokens - 1000
  redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
  redis.call('PEXPIRE', KEYS[1], 120000)
  return {1, tokens}
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', KEYS[1], 120000)
local deficit = 1000 - tokens
local retry = math.ceil(deficit * 60 / rate)
return {0, retry}
`)

// TakeToken implements Backend.
func (b *RedisBackend) TakeToken(ctx context.Context, keyID string, ratePerMinute int, now time.Time) (bool, time.Duration, error) {
	result, err := takeTokenScript.Run(ctx, b.client, []string{bucketKey(keyID)},
		now.UnixMilli(), ratePerMinute).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script: %w", err)
	}

	admitted, _ := result[0].(int64)
	if admitted == 1 {
		return true, 0, nil
	}
	retryMs, _ := result[1].(int64)
	return false, time.Duration(retryMs) * time.Millisecond, nil
}

// Ping implements Backend.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
