package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"expertassist/internal/audit"
	"expertassist/internal/calls"
	"expertassist/pkg/logger"
	"expertassist/pkg/metrics"
	"expertassist/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker elects a single reconciler across instances.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// RedisLocker holds a token-owned lease. The TTL frees the lock if the holder
// dies mid-sweep, and Unlock never releases a lease another instance took
// after this one expired.
type RedisLocker struct {
	rdb redis.Scripter
	key string
	ttl time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLocker(rdb redis.Scripter, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, key: key, ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := utils.AcquireLease(ctx, l.rdb, l.key, token, l.ttl)
	if err != nil || !ok {
		return false, err
	}
	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
	return true, nil
}

func (l *RedisLocker) Unlock(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}
	return utils.ReleaseLease(ctx, l.rdb, l.key, token)
}

type MemoryLocker struct{ mu sync.Mutex }

func (l *MemoryLocker) TryLock(context.Context) (bool, error) { return l.mu.TryLock(), nil }

func (l *MemoryLocker) Unlock(context.Context) error {
	l.mu.Unlock()
	return nil
}

type StaleStore interface {
	ListStale(ctx context.Context, before time.Time, limit int) ([]calls.Call, error)
	Finish(ctx context.Context, id string, status calls.Status, reason string, at time.Time) (calls.Call, error)
}

type ReconcilerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// Reconciler fails calls whose lifecycle stopped making progress, typically
// because the process driving them died.
type Reconciler struct {
	calls   StaleStore
	locker  Locker
	audit   *audit.Service
	metrics *metrics.Metrics
	log     *slog.Logger
	cfg     ReconcilerConfig
	clock   func() time.Time
}

func NewReconciler(store StaleStore, locker Locker, cfg ReconcilerConfig, a *audit.Service, m *metrics.Metrics, log *slog.Logger) *Reconciler {
	if locker == nil {
		locker = &MemoryLocker{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Reconciler{
		calls:   store,
		locker:  locker,
		audit:   a,
		metrics: m,
		log:     logger.Or(log),
		cfg:     cfg,
		clock:   time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	r.clock = clock
	return r
}

// Run sweeps every Interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.cfg.Interval <= 0 {
		return errors.New("reconciler: interval must be > 0")
	}
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n, err := r.Sweep(ctx); err != nil {
				r.log.Warn("reconcile sweep failed", "err", err)
			} else if n > 0 {
				r.log.Info("reconciled stale calls", "count", n)
			}
		}
	}
}

// Sweep fails one batch of stale calls and returns how many it moved. It is
// a no-op when another instance holds the lock.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	ok, err := r.locker.TryLock(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconciler lock: %w", err)
	}
	if !ok {
		return 0, nil
	}
	defer func() {
		if err := r.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
			r.log.Warn("reconciler unlock failed", "err", err)
		}
	}()

	now := r.clock()
	stale, err := r.calls.ListStale(ctx, now.Add(-r.cfg.StaleAfter), r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, c := range stale {
		reason := fmt.Sprintf("lifecycle stalled in %s", c.Status)
		if _, err := r.calls.Finish(ctx, c.ID, calls.StatusFailed, reason, now); err != nil {
			if errors.Is(err, calls.ErrStatusConflict) || errors.Is(err, calls.ErrNotFound) {
				continue
			}
			return moved, err
		}
		moved++
		r.metrics.CallReconciled()
		r.metrics.CallFinished(string(calls.StatusFailed), 0)
		r.log.Warn("stale call failed", "call_id", c.ID, "status", c.Status, "updated_at", c.UpdatedAt)
		if r.audit != nil {
			if err := r.audit.LogCallEvent(ctx, audit.EventTypeCallReconciled, "", c.ID, reason); err != nil {
				r.log.Warn("audit append failed", "call_id", c.ID, "err", err)
			}
		}
	}
	return moved, nil
}
