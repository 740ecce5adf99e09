// Package ratelimit provides Redis-backed rate limiting with a
// sliding window algorithm.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces a sliding-window request count per key using
// a Redis sorted set: one ZADD per request, trimmed on each check by
// ZREMRANGEBYSCORE, so the count always reflects only requests within
// the trailing window.
type RedisLimiter struct {
	client *redis.Client
	config *Config
	script *redis.Script
}

// Result reports the outcome of one rate limit check.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Count      int           `json:"count"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
	ResetTime  time.Time     `json:"reset_time"`
	Key        string        `json:"key"`
	Window     time.Duration `json:"window"`
}

// NewRedisLimiter creates a new Redis-backed rate limiter.
func NewRedisLimiter(config *Config) (*RedisLimiter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.RedisAddr,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolSize:     config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisLimiter{
		client: rdb,
		config: config,
		script: redis.NewScript(slidingWindowScript),
	}, nil
}

// Check consumes one request against key's budget, bounded by limit.
func (rl *RedisLimiter) Check(ctx context.Context, key string, limit *RouteLimit) (*Result, error) {
	if limit == nil {
		return nil, fmt.Errorf("route limit configuration is required")
	}
	fullKey := rl.config.KeyPrefix + key
	now := time.Now().UnixMilli()

	raw, err := rl.script.Run(ctx, rl.client, []string{fullKey}, limit.Limit, limit.Window.Milliseconds(), now).Result()
	if err != nil {
		return nil, fmt.Errorf("sliding window script failed: %w", err)
	}
	result, err := parseScriptResult(raw, limit)
	if err != nil {
		return nil, err
	}
	result.Key = key
	result.Window = limit.Window
	return result, nil
}

// Reset clears key's window, used by admin tooling and tests.
func (rl *RedisLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, rl.config.KeyPrefix+key).Err()
}

// Close releases the underlying Redis connection pool.
func (rl *RedisLimiter) Close() error {
	return rl.client.Close()
}

// IsHealthy reports whether the limiter's Redis connection is alive.
func (rl *RedisLimiter) IsHealthy(ctx context.Context) error {
	return rl.client.Ping(ctx).Err()
}

// Config returns the configuration the limiter was constructed with,
// so callers can resolve per-route limits and bypass IPs.
func (rl *RedisLimiter) Config() *Config {
	return rl.config
}

func parseScriptResult(result interface{}, limit *RouteLimit) (*Result, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) < 4 {
		return nil, fmt.Errorf("invalid script result format")
	}

	allowed, err := strconv.ParseBool(fmt.Sprintf("%v", values[0]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse allowed: %w", err)
	}
	count, err := strconv.Atoi(fmt.Sprintf("%v", values[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse count: %w", err)
	}
	remaining, err := strconv.Atoi(fmt.Sprintf("%v", values[2]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse remaining: %w", err)
	}
	resetMs, err := strconv.ParseInt(fmt.Sprintf("%v", values[3]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reset time: %w", err)
	}

	resetTime := time.UnixMilli(resetMs)
	retryAfter := time.Until(resetTime)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return &Result{
		Allowed:    allowed,
		Count:      count,
		Limit:      limit.Limit,
		Remaining:  remaining,
		RetryAfter: retryAfter,
		ResetTime:  resetTime,
	}, nil
}

// slidingWindowScript keeps a sorted set of request timestamps per
// key, pruning anything older than the window before counting.
const slidingWindowScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local current = redis.call('ZCARD', key)

local allowed = 0
if current < limit then
    allowed = 1
    redis.call('ZADD', key, now, now .. ':' .. math.random())
    current = current + 1
    redis.call('EXPIRE', key, math.ceil(window / 1000))
end

local remaining = math.max(0, limit - current)
local resetTime = now + window

return {allowed, current, remaining, resetTime}
`
