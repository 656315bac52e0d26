package lifecycle

import (
	"context"
	"sync"
	"time"

	"expertassist/internal/calls"
	"expertassist/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const activeCallsNamespace = "calls:active"

// RedisLimiter caps concurrently active calls per user across instances.
// The counter TTL bounds how long a crashed process can hold slots.
type RedisLimiter struct {
	rdb   redis.Scripter
	limit int
	ttl   time.Duration
}

var _ calls.Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(rdb redis.Scripter, limit int, ttl time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, ttl: ttl}
}

func (l *RedisLimiter) Acquire(ctx context.Context, userID string) (bool, error) {
	return utils.AcquireSlot(ctx, l.rdb, utils.SlotKey(activeCallsNamespace, userID), l.limit, l.ttl)
}

func (l *RedisLimiter) Release(ctx context.Context, userID string) error {
	return utils.ReleaseSlot(ctx, l.rdb, utils.SlotKey(activeCallsNamespace, userID))
}

// MemoryLimiter is the single-process variant.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	active map[string]int
}

func NewMemoryLimiter(limit int) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, active: map[string]int{}}
}

func (l *MemoryLimiter) Acquire(ctx context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active[userID] >= l.limit {
		return false, nil
	}
	l.active[userID]++
	return true, nil
}

func (l *MemoryLimiter) Release(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active[userID] <= 1 {
		delete(l.active, userID)
		return nil
	}
	l.active[userID]--
	return nil
}
