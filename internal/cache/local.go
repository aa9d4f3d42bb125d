package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const defaultLocalTTL = 10 * time.Minute

// Local is an in-process cache with per-entry expiry.
type Local struct {
	items *gocache.Cache
}

var _ Cache = (*Local)(nil)

// NewLocal creates a Local cache. Expired entries are purged every 2*ttl.
func NewLocal(ttl time.Duration) *Local {
	if ttl <= 0 {
		ttl = defaultLocalTTL
	}
	return &Local{items: gocache.New(ttl, 2*ttl)}
}

// Get implements Cache.
func (c *Local) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, nil
	}
	b, _ := v.([]byte)
	return append([]byte(nil), b...), nil
}

// Set implements Cache.
func (c *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Len returns the number of stored items, including expired ones not yet purged.
func (c *Local) Len() int { return c.items.ItemCount() }

// Close implements Cache.
func (c *Local) Close() error {
	c.items.Flush()
	return nil
}
