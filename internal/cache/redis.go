package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisOptions configures a Redis cache.
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	Namespace   string
	DefaultTTL  time.Duration
	DialTimeout time.Duration
}

// Redis stores entries in Redis under "<namespace>:<key>".
type Redis struct {
	client     goredis.UniversalClient
	namespace  string
	defaultTTL time.Duration
}

var _ Cache = (*Redis)(nil)

// NewRedis connects to a single Redis node and pings it.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisWithClient(client, opts.Namespace, opts.DefaultTTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client goredis.UniversalClient, namespace string, defaultTTL time.Duration) *Redis {
	if defaultTTL <= 0 {
		defaultTTL = defaultLocalTTL
	}
	return &Redis{client: client, namespace: namespace, defaultTTL: defaultTTL}
}

func (c *Redis) prefixKey(key string) string {
	if c.namespace == "" {
		return key
	}
	return c.namespace + ":" + key
}

// Get implements Cache.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefixKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set implements Cache.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.prefixKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close implements Cache.
func (c *Redis) Close() error {
	return c.client.Close()
}
