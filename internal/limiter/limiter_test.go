package limiter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"alignbox_chat/pkg/config"
)

func TestMemoryStrategyLimitsPerKey(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStrategy()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := s.Allow(ctx, "a", 2, time.Minute)
		req.NoError(err)
		req.True(ok)
	}
	ok, _ := s.Allow(ctx, "a", 2, time.Minute)
	req.False(ok)

	ok, _ = s.Allow(ctx, "b", 2, time.Minute)
	req.True(ok, "other keys keep their own budget")
}

func TestMemoryStrategyRefills(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStrategy()
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := s.Allow(ctx, "a", 1, 10*time.Second)
	req.True(ok)
	ok, _ = s.Allow(ctx, "a", 1, 10*time.Second)
	req.False(ok)

	now = now.Add(10 * time.Second)
	ok, _ = s.Allow(ctx, "a", 1, 10*time.Second)
	req.True(ok)
}

func TestMemoryStrategySweepsIdleBuckets(t *testing.T) {
	s := NewMemoryStrategy()
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	for i := 0; i < sweepThreshold; i++ {
		_, _ = s.Allow(context.Background(), fmt.Sprintf("10.0.%d.%d", i/256, i%256), 1, time.Second)
	}
	require.Len(t, s.buckets, sweepThreshold)

	now = now.Add(time.Minute)
	_, _ = s.Allow(context.Background(), "fresh", 1, time.Second)
	require.Len(t, s.buckets, 1)
}

func TestRedisStrategyFixedWindow(t *testing.T) {
	req := require.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := NewManager(NewRedisStrategy(rdb), 2, 10*time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := m.Allow(ctx, "10.0.0.1")
		req.NoError(err)
		req.True(ok)
	}
	ok, err := m.Allow(ctx, "10.0.0.1")
	req.NoError(err)
	req.False(ok)

	req.True(mr.Exists("limiter:10.0.0.1"))
	req.Equal(10*time.Second, mr.TTL("limiter:10.0.0.1"))

	mr.FastForward(10 * time.Second)
	ok, err = m.Allow(ctx, "10.0.0.1")
	req.NoError(err)
	req.True(ok)
}

func TestRedisStrategyReportsErrors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	_, err = NewRedisStrategy(rdb).Allow(context.Background(), "k", 1, time.Second)
	require.Error(t, err)
}

func TestNewSelectsStrategy(t *testing.T) {
	req := require.New(t)
	rl := config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Second}

	m, err := New(context.Background(), rl, config.RedisConfig{})
	req.NoError(err)
	req.IsType(&MemoryStrategy{}, m.strategy)
	req.NoError(m.Close())

	mr, err := miniredis.Run()
	req.NoError(err)
	m, err = New(context.Background(), rl, config.RedisConfig{Addr: mr.Addr()})
	req.NoError(err)
	req.IsType(&RedisStrategy{}, m.strategy)
	req.NoError(m.Close())

	// 啟動時 Redis 無法連線
	addr := mr.Addr()
	mr.Close()
	_, err = New(context.Background(), rl, config.RedisConfig{Addr: addr})
	req.Error(err)
	req.ErrorContains(err, addr)
}
