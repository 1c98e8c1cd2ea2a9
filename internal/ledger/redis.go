package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisBackend stores counters in a Redis hash per key, mutated through Lua
// scripts so rollover + limit check + increment execute as one atomic step
// across all gateway instances.
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

// NewRedisBackendFromClient wraps an existing client (shared with the rate
// limiter backend).
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func ledgerKey(keyID string) string {
	return fmt.Sprintf("ledger:%s", keyID)
}

// tryDebitScript: KEYS[1] = ledger hash.
// ARGV: day, month, estimateMicros, totalLimitMicros, dailyLimitMicros,
// monthlyLimitMicros (limits -1 when unconfigured).
// Returns {1, total, daily, monthly} on admit,
// {0, kind, spent, total, daily, monthly} on reject.
// All counter values are integer micro-dollars.
var tryDebitScript = redis.NewScript(`
local day = ARGV[1]
local month = ARGV[2]
local estimate = tonumber(ARGV[3])
local limitTotal = tonumber(ARGV[4])
local limitDaily = tonumber(ARGV[5])
local limitMonthly = tonumber(ARGV[6])

local total = tonumber(redis.call('HGET', KEYS[1], 'total') or '0')
local daily = tonumber(redis.call('HGET', KEYS[1], 'daily') or '0')
local monthly = tonumber(redis.call('HGET', KEYS[1], 'monthly') or '0')

if redis.call('HGET', KEYS[1], 'day') ~= day then
  daily = 0
end
if redis.call('HGET', KEYS[1], 'month') ~= month then
  monthly = 0
end

if limitTotal >= 0 and total + estimate > limitTotal then
  return {0, 'total', total, total, daily, monthly}
end
if limitDaily >= 0 and daily + estimate > limitDaily then
  return {0, 'daily', daily, total, daily, monthly}
end
if limitMonthly >= 0 and monthly + estimate > limitMonthly then
  return {0, 'monthly', monthly, total, daily, monthly}
end

total = total + estimate
daily = daily + estimate
monthly = monthly + estimate
redis.call('HSET', KEYS[1], 'total', total, 'daily', daily, 'monthly', monthly, 'day', day, 'month', month)
return {1, total, daily, monthly}
`)

// adjustScript: same keys; ARGV: day, month, deltaMicros. Counters floor at
// zero. Returns {total, daily, monthly}.
var adjustScript = redis.NewScript(`
local day = ARGV[1]
local month = ARGV[2]
local delta = tonumber(ARGV[3])

local total = tonumber(redis.call('HGET', KEYS[1], 'total') or '0')
local daily = tonumber(redis.call('HGET', KEYS[1], 'daily') or '0')
local monthly = tonumber(redis.call('HGET', KEYS[1], 'monthly') or '0')

if redis.call('HGET', KEYS[1], 'day') ~= day then
  daily = 0
end
if redis.call('HGET', KEYS[1], 'month') ~= month then
  monthly = 0
end

total = math.max(0, total + delta)
daily = math.max(0, daily + delta)
monthly = math.max(0, monthly + delta)
redis.call('HSET', KEYS[1], 'total', total, 'daily', daily, 'monthly', monthly, 'day', day, 'month', month)
return {total, daily, monthly}
`)

// TryDebit implements Backend.
func (b *RedisBackend) TryDebit(ctx context.Context, keyID string, limits Limits, estimate decimal.Decimal, now time.Time) (Snapshot, error) {
	result, err := tryDebitScript.Run(ctx, b.client, []string{ledgerKey(keyID)},
		dayStamp(now), monthStamp(now),
		toMicros(estimate),
		limitMicrosArg(limits.Total),
		limitMicrosArg(limits.Daily),
		limitMicrosArg(limits.Monthly),
	).Slice()
	if err != nil {
		return Snapshot{}, fmt.Errorf("ledger debit script: %w", err)
	}

	admitted, _ := result[0].(int64)
	if admitted == 1 {
		return redisSnapshot(now, result[1], result[2], result[3]), nil
	}

	kind, _ := result[1].(string)
	spent, _ := result[2].(int64)
	snap := redisSnapshot(now, result[3], result[4], result[5])
	limit := limitForKind(limits, LimitKind(kind))
	return snap, &BudgetExceededError{
		KeyID:    keyID,
		Kind:     LimitKind(kind),
		Limit:    limit,
		Spent:    fromMicros(spent),
		Estimate: estimate,
	}
}

// Adjust implements Backend.
func (b *RedisBackend) Adjust(ctx context.Context, keyID string, delta decimal.Decimal, now time.Time) (Snapshot, error) {
	result, err := adjustScript.Run(ctx, b.client, []string{ledgerKey(keyID)},
		dayStamp(now), monthStamp(now), toMicros(delta)).Slice()
	if err != nil {
		return Snapshot{}, fmt.Errorf("ledger adjust script: %w", err)
	}
	return redisSnapshot(now, result[0], result[1], result[2]), nil
}

// Snapshot implements Backend. Rollover is applied via a zero adjust so the
// returned view always reflects the current period.
func (b *RedisBackend) Snapshot(ctx context.Context, keyID string, now time.Time) (Snapshot, error) {
	return b.Adjust(ctx, keyID, decimal.Zero, now)
}

// Ping implements Backend.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func limitMicrosArg(limit *decimal.Decimal) int64 {
	if limit == nil {
		return -1
	}
	return toMicros(*limit)
}

func limitForKind(limits Limits, kind LimitKind) decimal.Decimal {
	var limit *decimal.Decimal
	switch kind {
	case LimitTotal:
		limit = limits.Total
	case LimitDaily:
		limit = limits.Daily
	case LimitMonthly:
		limit = limits.Monthly
	}
	if limit == nil {
		return decimal.Zero
	}
	return *limit
}

func redisSnapshot(now time.Time, total, daily, monthly any) Snapshot {
	totalM, _ := total.(int64)
	dailyM, _ := daily.(int64)
	monthlyM, _ := monthly.(int64)
	day, _ := time.Parse("2006-01-02", dayStamp(now)) //nolint:errcheck
	return Snapshot{
		TotalCost:   fromMicros(totalM),
		DailyCost:   fromMicros(dailyM),
		MonthlyCost: fromMicros(monthlyM),
		LastReset:   day,
	}
}
