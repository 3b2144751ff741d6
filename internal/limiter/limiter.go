// Package limiter 提供送出訊息的限流策略。
//
// 未設定 Redis 時使用行程內的令牌桶；設定 Redis 時改用固定窗口計數，
// 讓多個實例共用同一份額度。
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"alignbox_chat/pkg/config"
)

const keyPrefix = "limiter:"

// Strategy 定義限流演算法
type Strategy interface {
	// Allow 檢查 key 在 window 內是否仍未超過 limit 次
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Manager 以固定的額度呼叫底層策略
type Manager struct {
	strategy Strategy
	limit    int
	window   time.Duration
	closer   func() error
}

func NewManager(strategy Strategy, limit int, window time.Duration) *Manager {
	return &Manager{
		strategy: strategy,
		limit:    limit,
		window:   window,
	}
}

// New 依設定選擇策略；Redis 位址為空時使用記憶體令牌桶
func New(ctx context.Context, cfg config.RateLimitConfig, redisCfg config.RedisConfig) (*Manager, error) {
	if redisCfg.Addr == "" {
		return NewManager(NewMemoryStrategy(), cfg.Requests, cfg.Window), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", redisCfg.Addr, err)
	}

	m := NewManager(NewRedisStrategy(rdb), cfg.Requests, cfg.Window)
	m.closer = rdb.Close
	return m, nil
}

// Allow 以 key 為單位計算額度
func (m *Manager) Allow(ctx context.Context, key string) (bool, error) {
	return m.strategy.Allow(ctx, keyPrefix+key, m.limit, m.window)
}

func (m *Manager) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer()
}
