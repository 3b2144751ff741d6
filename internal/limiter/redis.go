package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// INCR 與 PEXPIRE 以 Lua 原子執行
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
	return 0
end
return 1
`)

// RedisStrategy 固定窗口計數，多個實例共用額度
type RedisStrategy struct {
	rdb *redis.Client
}

func NewRedisStrategy(rdb *redis.Client) *RedisStrategy {
	return &RedisStrategy{rdb: rdb}
}

func (s *RedisStrategy) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1000
	}
	result, err := fixedWindowScript.Run(ctx, s.rdb, []string{key}, limit, ms).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}
