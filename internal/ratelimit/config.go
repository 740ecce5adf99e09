// Package ratelimit provides a Redis-backed sliding-window request
// limiter, applied per API key (or client IP, when no key is sent) to
// the ingest- and search-facing routes of cmd/search-api.
package ratelimit

import (
	"fmt"
	"time"
)

// Config configures both the Redis connection the limiter runs its
// sliding-window scripts against and the limits it enforces.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	// DefaultLimit/DefaultWindow bound any route with no entry in
	// RouteLimits.
	DefaultLimit  int
	DefaultWindow time.Duration
	KeyPrefix     string

	// RouteLimits overrides DefaultLimit/DefaultWindow for specific
	// routes, keyed by request method and path (e.g. "POST /api/chunk").
	RouteLimits map[string]*RouteLimit

	BypassIPs []string
}

// RouteLimit is the limit applied to one HTTP route.
type RouteLimit struct {
	Limit  int
	Window time.Duration
}

// DefaultConfig returns the limiter's out-of-the-box settings: 100
// requests/minute per key on every route, tightened for chunk
// ingestion since embedding calls are the expensive path.
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:     "localhost:6379",
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		PoolSize:      10,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		KeyPrefix:     "rl:",
		RouteLimits: map[string]*RouteLimit{
			"POST /api/chunk": {Limit: 30, Window: time.Minute},
		},
		BypassIPs: []string{"127.0.0.1", "::1"},
	}
}

// Validate checks that every required setting is present.
func (c *Config) Validate() error {
	if c.RedisAddr == "" {
		return fmt.Errorf("redis address is required")
	}
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be positive")
	}
	if c.DefaultWindow <= 0 {
		return fmt.Errorf("default window must be positive")
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "rl:"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	for route, limit := range c.RouteLimits {
		if limit.Limit <= 0 {
			return fmt.Errorf("invalid limit for route %s: limit must be positive", route)
		}
		if limit.Window <= 0 {
			return fmt.Errorf("invalid limit for route %s: window must be positive", route)
		}
	}
	return nil
}

// RouteLimitFor returns the configured limit for route, falling back
// to DefaultLimit/DefaultWindow.
func (c *Config) RouteLimitFor(route string) *RouteLimit {
	if limit, ok := c.RouteLimits[route]; ok {
		return limit
	}
	return &RouteLimit{Limit: c.DefaultLimit, Window: c.DefaultWindow}
}

// ShouldBypass reports whether a request from ip should skip rate
// limiting entirely (used for health checks and local tooling).
func (c *Config) ShouldBypass(ip string) bool {
	for _, bypass := range c.BypassIPs {
		if ip == bypass {
			return true
		}
	}
	return false
}
