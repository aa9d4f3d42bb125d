package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/grandpal/internal/config"
)

func TestKey(t *testing.T) {
	a := Key("emotion", "I miss my husband")
	b := Key("emotion", "I miss my husband")
	c := Key("emotion", "I miss my husband.")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, len("emotion:")+64)
}

func TestLocal_SetGet(t *testing.T) {
	c := NewLocal(time.Minute)
	ctx := context.Background()

	got, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	value := []byte(`{"emotion":"happy"}`)
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value[2] = 'X'

	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"emotion":"happy"}`, string(got))
	assert.Equal(t, 1, c.Len())
}

func TestLocal_Expiry(t *testing.T) {
	c := NewLocal(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	time.Sleep(50 * time.Millisecond)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocal_ZeroTTLUsesConfiguredDefault(t *testing.T) {
	c := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	time.Sleep(50 * time.Millisecond)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedis_SetGet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	c := NewRedisWithClient(client, "grandpal", time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	got, err := c.Get(ctx, "emotion:abc")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, "emotion:abc", []byte("v"), 0))
	assert.True(t, s.Exists("grandpal:emotion:abc"))
	assert.Equal(t, time.Minute, s.TTL("grandpal:emotion:abc"))

	got, err = c.Get(ctx, "emotion:abc")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	s.FastForward(2 * time.Minute)
	got, err = c.Get(ctx, "emotion:abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNew(t *testing.T) {
	s := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.CacheConfig
		want    any
		wantErr bool
	}{
		{name: "none", cfg: config.CacheConfig{Type: config.CacheNone}, want: Nop{}},
		{name: "empty", cfg: config.CacheConfig{}, want: Nop{}},
		{name: "local", cfg: config.CacheConfig{Type: config.CacheLocal, TTL: time.Minute}, want: &Local{}},
		{name: "redis", cfg: config.CacheConfig{Type: config.CacheRedis, Redis: config.RedisConfig{Addr: s.Addr(), Namespace: "t"}}, want: &Redis{}},
		{name: "redis unreachable", cfg: config.CacheConfig{Type: config.CacheRedis, Redis: config.RedisConfig{Addr: "127.0.0.1:1"}}, wantErr: true},
		{name: "unknown", cfg: config.CacheConfig{Type: "memcached"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close() })
			assert.IsType(t, tt.want, c)
		})
	}
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	got, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}
