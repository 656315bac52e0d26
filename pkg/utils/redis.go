package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls the client pool. Zero values take the defaults below.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// OpenRedis builds a client and fails fast when the server does not answer PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 20
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     durationOr(cfg.DialTimeout, 3*time.Second),
		ReadTimeout:     durationOr(cfg.ReadTimeout, 2*time.Second),
		WriteTimeout:    durationOr(cfg.WriteTimeout, 2*time.Second),
		PoolSize:        poolSize,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	pingCtx, cancel := context.WithTimeout(ctx, durationOr(cfg.PingTimeout, 2*time.Second))
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// slotAcquireScript takes one slot from a counter capped at ARGV[1]. Every
// successful acquire renews the lease to ARGV[2] ms so a crashed holder
// cannot pin the counter forever.
var slotAcquireScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return 0
end
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

var slotReleaseScript = redis.NewScript(`
if redis.call('DECR', KEYS[1]) <= 0 then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// AcquireSlot reserves one of limit slots under key. It backs the per-user
// active call cap.
func AcquireSlot(ctx context.Context, rdb redis.Scripter, key string, limit int, ttl time.Duration) (bool, error) {
	switch {
	case rdb == nil:
		return false, errors.New("redis client is nil")
	case key == "":
		return false, errors.New("slot key is required")
	case limit <= 0:
		return false, errors.New("slot limit must be > 0")
	case ttl <= 0:
		return false, errors.New("slot ttl must be > 0")
	}

	got, err := slotAcquireScript.Run(ctx, rdb, []string{key}, limit, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("acquire slot %s: %w", key, err)
	}
	return got == 1, nil
}

// ReleaseSlot returns a slot taken by AcquireSlot.
func ReleaseSlot(ctx context.Context, rdb redis.Scripter, key string) error {
	if rdb == nil {
		return errors.New("redis client is nil")
	}
	if key == "" {
		return errors.New("slot key is required")
	}
	if err := slotReleaseScript.Run(ctx, rdb, []string{key}).Err(); err != nil {
		return fmt.Errorf("release slot %s: %w", key, err)
	}
	return nil
}

// SlotKey namespaces a slot counter, e.g. SlotKey("calls:active", userID).
func SlotKey(namespace, id string) string {
	return namespace + ":" + id
}

// ErrLeaseLost means the lease expired or was taken by another holder before
// release.
var ErrLeaseLost = errors.New("redis lease not held")

var leaseAcquireScript = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
  return 1
end
return 0
`)

// leaseReleaseScript deletes the key only while it still holds ARGV[1].
var leaseReleaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// AcquireLease takes an exclusive lease on key for ttl, owned by token.
func AcquireLease(ctx context.Context, rdb redis.Scripter, key, token string, ttl time.Duration) (bool, error) {
	switch {
	case rdb == nil:
		return false, errors.New("redis client is nil")
	case key == "" || token == "":
		return false, errors.New("lease key and token are required")
	case ttl <= 0:
		return false, errors.New("lease ttl must be > 0")
	}
	got, err := leaseAcquireScript.Run(ctx, rdb, []string{key}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	return got == 1, nil
}

// ReleaseLease drops the lease if token still owns it and returns
// ErrLeaseLost otherwise. A lease held by someone else is left alone.
func ReleaseLease(ctx context.Context, rdb redis.Scripter, key, token string) error {
	if rdb == nil {
		return errors.New("redis client is nil")
	}
	if key == "" || token == "" {
		return errors.New("lease key and token are required")
	}
	n, err := leaseReleaseScript.Run(ctx, rdb, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", key, err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}
