// Package kvcache wraps the handful of Redis primitives the queue
// fabric and BK-tree cache are built on: list push/pop for queues, a
// blob get/set for serialized trees, and set membership for the
// dedup guard.
package kvcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is a thin wrapper over redis.Client exposing only the
// commands the rest of the platform needs, so callers never reach for
// the full go-redis surface directly.
type Client struct {
	rdb *redis.Client
}

// Config mirrors the connection knobs the platform's Redis-backed
// components care about.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New connects a Client and verifies the connection with a PING.
func New(ctx context.Context, cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// LPush pushes value onto the head of list.
func (c *Client) LPush(ctx context.Context, list string, value []byte) error {
	return c.rdb.LPush(ctx, list, value).Err()
}

// BRPopLPush blocks up to timeout for a value at the tail of src,
// atomically moving it to the head of dst. It returns redis.Nil when
// the wait times out with nothing available.
func (c *Client) BRPopLPush(ctx context.Context, src, dst string, timeout time.Duration) ([]byte, error) {
	res, err := c.rdb.BRPopLPush(ctx, src, dst, timeout).Bytes()
	if err != nil {
		return nil, err
	}
	return res, nil
}

// LRem removes up to count occurrences of value from list.
func (c *Client) LRem(ctx context.Context, list string, count int64, value []byte) error {
	return c.rdb.LRem(ctx, list, count, value).Err()
}

// RPop pops up to count values from the tail of list, used by
// supervisors draining a processing list back onto its source queue
// during crash recovery.
func (c *Client) RPop(ctx context.Context, list string, count int64) ([]string, error) {
	res, err := c.rdb.RPopCount(ctx, list, int(count)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return res, err
}

// LLen reports the current depth of list, used by telemetry to
// publish queue-depth gauges.
func (c *Client) LLen(ctx context.Context, list string) (int64, error) {
	return c.rdb.LLen(ctx, list).Result()
}

// SAdd adds member to set, returning whether it was newly added.
func (c *Client) SAdd(ctx context.Context, set string, member []byte) (bool, error) {
	n, err := c.rdb.SAdd(ctx, set, member).Result()
	return n > 0, err
}

// SIsMember reports whether member is present in set.
func (c *Client) SIsMember(ctx context.Context, set string, member []byte) (bool, error) {
	return c.rdb.SIsMember(ctx, set, member).Result()
}

// Set stores value under key with an optional TTL (zero disables
// expiry), used to persist compressed BK-tree blobs.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get retrieves the value stored under key. It returns redis.Nil when
// absent so callers can distinguish a cache miss from a real error.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

// IsNil reports whether err is the sentinel go-redis returns for a
// missing key or an exhausted blocking pop.
func IsNil(err error) bool { return err == redis.Nil }
