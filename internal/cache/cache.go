// Package cache stores short-lived analysis results keyed by content hash.
// Backends are an in-process cache and Redis; a miss is (nil, nil).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/blueberrycongee/grandpal/internal/config"
)

// Cache is the interface implemented by all backends.
type Cache interface {
	// Get returns the value for key, or nil, nil when it is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl of zero uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases backend resources.
	Close() error
}

// Key derives a cache key from a kind prefix and arbitrary text.
func Key(kind, text string) string {
	sum := sha256.Sum256([]byte(text))
	return kind + ":" + hex.EncodeToString(sum[:])
}

// New builds the backend selected by cfg.
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "", config.CacheNone:
		return Nop{}, nil
	case config.CacheLocal:
		return NewLocal(cfg.TTL), nil
	case config.CacheRedis:
		return NewRedis(RedisOptions{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			Namespace:  cfg.Redis.Namespace,
			DefaultTTL: cfg.TTL,
		})
	default:
		return nil, fmt.Errorf("cache: unsupported type %q", cfg.Type)
	}
}

// Nop never stores anything.
type Nop struct{}

// Get implements Cache. It always misses.
func (Nop) Get(context.Context, string) ([]byte, error) { return nil, nil }

// Set implements Cache. The value is discarded.
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Close implements Cache.
func (Nop) Close() error { return nil }
