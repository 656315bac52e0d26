package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Canceler carries end-call requests to whichever process runs the call.
type Canceler interface {
	RequestCancel(ctx context.Context, callID string) error
	IsCanceled(ctx context.Context, callID string) (bool, error)
}

type MemoryCanceler struct {
	mu       sync.Mutex
	canceled map[string]struct{}
}

func NewMemoryCanceler() *MemoryCanceler {
	return &MemoryCanceler{canceled: map[string]struct{}{}}
}

func (c *MemoryCanceler) RequestCancel(ctx context.Context, callID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canceled[callID] = struct{}{}
	return nil
}

func (c *MemoryCanceler) IsCanceled(ctx context.Context, callID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.canceled[callID]
	return ok, nil
}

// RedisCanceler stores cancel flags as expiring keys so any API instance can
// end a call running on another.
type RedisCanceler struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisCanceler(rdb redis.Cmdable, ttl time.Duration) *RedisCanceler {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCanceler{rdb: rdb, ttl: ttl}
}

func cancelKey(callID string) string { return "call:cancel:" + callID }

func (c *RedisCanceler) RequestCancel(ctx context.Context, callID string) error {
	return c.rdb.Set(ctx, cancelKey(callID), "1", c.ttl).Err()
}

func (c *RedisCanceler) IsCanceled(ctx context.Context, callID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, cancelKey(callID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
