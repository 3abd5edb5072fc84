package budget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"mercator-hq/saturn/pkg/config"
)

// ARGV[1] is now and ARGV[2] the window cutoff, both in unix milliseconds.
// Each tenant has a sorted set of entry ids scored by creation time in
// milliseconds and a hash of entry id to tokens. Both keys share a hash
// tag so a cluster keeps them on one slot.
const pruneAndSum = `
local zkey, hkey = KEYS[1], KEYS[2]
local cutoff = ARGV[2]
local expired = redis.call("ZRANGEBYSCORE", zkey, "-inf", cutoff)
if #expired > 0 then
  redis.call("HDEL", hkey, unpack(expired))
  redis.call("ZREMRANGEBYSCORE", zkey, "-inf", cutoff)
end
local used = 0
for _, v in ipairs(redis.call("HVALS", hkey)) do
  used = used + tonumber(v)
end
`

var reserveScript = redis.NewScript(pruneAndSum + `
local entry = ARGV[3]
local tokens = tonumber(ARGV[4])
local ceiling = tonumber(ARGV[5])
local ttl = tonumber(ARGV[6])
if used + tokens > ceiling then
  return {0, used}
end
if not redis.call("ZSCORE", zkey, entry) then
  redis.call("ZADD", zkey, ARGV[1], entry)
end
redis.call("HINCRBY", hkey, entry, ARGV[4])
redis.call("PEXPIRE", zkey, ttl)
redis.call("PEXPIRE", hkey, ttl)
return {1, used + tokens}
`)

var settleScript = redis.NewScript(pruneAndSum + `
local entry = ARGV[3]
local tokens = tonumber(ARGV[4])
if not redis.call("ZSCORE", zkey, entry) then
  return 0
end
if tokens <= 0 then
  redis.call("ZREM", zkey, entry)
  redis.call("HDEL", hkey, entry)
else
  redis.call("HSET", hkey, entry, ARGV[4])
end
return 1
`)

var usageScript = redis.NewScript(pruneAndSum + `
return used
`)

// RedisOptions configure a RedisBackend.
type RedisOptions struct {
	KeyPrefix string

	// TTL is the minimum key TTL; the effective TTL is max(TTL, 2*window).
	TTL time.Duration

	// Timeout bounds every call.
	Timeout time.Duration
}

// RedisBackend shares tenant usage across replicas. Every error, including
// a timeout, is returned to the tracker, which denies.
type RedisBackend struct {
	client *redis.Client
	opts   RedisOptions
}

// NewRedisBackend creates a backend over an existing client.
func NewRedisBackend(client *redis.Client, opts RedisOptions) *RedisBackend {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = config.DefaultRedisKeyPrefix
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultRedisTimeout
	}
	return &RedisBackend{client: client, opts: opts}
}

// NewRedisBackendFromConfig dials redis from configuration. An unreachable
// server is logged, not fatal; checks deny until it recovers.
func NewRedisBackendFromConfig(cfg config.RedisBudgetConfig) *RedisBackend {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	b := NewRedisBackend(client, RedisOptions{KeyPrefix: cfg.KeyPrefix, TTL: cfg.TTL, Timeout: cfg.Timeout})

	ctx, cancel := context.WithTimeout(context.Background(), b.opts.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("budget redis backend unreachable, budget checks will deny until it recovers",
			"addr", cfg.Addr,
			"error", err,
		)
	}
	return b
}

// Name implements Backend.
func (b *RedisBackend) Name() string {
	return "redis"
}

func (b *RedisBackend) keys(tenantID string) []string {
	base := b.opts.KeyPrefix + "{" + tenantID + "}"
	return []string{base + ":entries", base + ":tokens"}
}

func (b *RedisBackend) ttl(window time.Duration) time.Duration {
	if b.opts.TTL > 2*window {
		return b.opts.TTL
	}
	return 2 * window
}

// IncrementAndCheck implements Backend.
func (b *RedisBackend) IncrementAndCheck(ctx context.Context, tenantID, entryID string, tokens, ceiling int64, window time.Duration, now time.Time) (Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	res, err := reserveScript.Run(ctx, b.client, b.keys(tenantID),
		now.UnixMilli(), now.Add(-window).UnixMilli(), entryID, tokens, ceiling, b.ttl(window).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Usage{}, err
	}
	if len(res) != 2 {
		return Usage{}, fmt.Errorf("unexpected reserve result %v", res)
	}
	return Usage{Allowed: res[0] == 1, Used: res[1]}, nil
}

// Settle implements Backend.
func (b *RedisBackend) Settle(ctx context.Context, tenantID, entryID string, tokens int64, window time.Duration, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	return settleScript.Run(ctx, b.client, b.keys(tenantID),
		now.UnixMilli(), now.Add(-window).UnixMilli(), entryID, tokens,
	).Err()
}

// Usage implements Backend.
func (b *RedisBackend) Usage(ctx context.Context, tenantID string, window time.Duration, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	return usageScript.Run(ctx, b.client, b.keys(tenantID), now.UnixMilli(), now.Add(-window).UnixMilli()).Int64()
}

// Close closes the client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
