package limiter

import (
	"context"
	"sync"
	"time"
)

// 超過此數量時清掉已回滿的桶
const sweepThreshold = 4096

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// MemoryStrategy 每個 key 一個令牌桶，容量為 limit，每 window 回滿
type MemoryStrategy struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemoryStrategy() *MemoryStrategy {
	return &MemoryStrategy{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (s *MemoryStrategy) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	capacity := float64(limit)
	rate := capacity / window.Seconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok {
		if len(s.buckets) >= sweepThreshold {
			s.sweep(now, window)
		}
		b = &bucket{tokens: capacity, lastCheck: now}
		s.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens += elapsed * rate
		if b.tokens > capacity {
			b.tokens = capacity
		}
	}
	b.lastCheck = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// sweep 移除閒置超過一個窗口的桶，這些桶必定已回滿
func (s *MemoryStrategy) sweep(now time.Time, window time.Duration) {
	for key, b := range s.buckets {
		if now.Sub(b.lastCheck) >= window {
			delete(s.buckets, key)
		}
	}
}
