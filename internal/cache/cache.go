// Package cache remembers when a series was last fetched from its source, so
// repeated runs inside the freshness window read from the store instead.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache records fetch times with an expiry.
type Cache interface {
	Get(ctx context.Context, key string) (time.Time, error)
	Set(ctx context.Context, key string, fetchedAt time.Time, ttl time.Duration) error
	Close() error
}

// Key builds the cache key for a symbol series from one source.
func Key(source, symbol, timeframe string) string {
	return "rsicalc:fetched:" + source + ":" + strings.ToUpper(symbol) + ":" + timeframe
}

// Options configures Open. An empty RedisAddr selects the in-memory cache.
type Options struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open returns a Redis cache when an address is configured, otherwise a memory cache.
func Open(ctx context.Context, opts Options) (Cache, error) {
	if opts.RedisAddr == "" {
		return NewMemory(), nil
	}
	return NewRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
}
