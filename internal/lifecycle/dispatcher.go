package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"expertassist/internal/calls"
	"expertassist/pkg/logger"
	"expertassist/pkg/metrics"
)

// RunFunc drives one call lifecycle. *Orchestrator.Run satisfies it.
type RunFunc func(ctx context.Context, callID string) error

// Dispatcher runs lifecycles in tracked goroutines. It implements
// calls.Runner.
type Dispatcher struct {
	base     context.Context
	run      RunFunc
	canceler Canceler
	metrics  *metrics.Metrics
	log      *slog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	running map[string]context.CancelCauseFunc
}

var _ calls.Runner = (*Dispatcher)(nil)

// NewDispatcher derives every lifecycle context from base; canceling base
// interrupts all running calls.
func NewDispatcher(base context.Context, run RunFunc, canceler Canceler, m *metrics.Metrics, log *slog.Logger) *Dispatcher {
	if canceler == nil {
		canceler = NewMemoryCanceler()
	}
	return &Dispatcher{
		base:     base,
		run:      run,
		canceler: canceler,
		metrics:  m,
		log:      logger.Or(log),
		running:  map[string]context.CancelCauseFunc{},
	}
}

func (d *Dispatcher) Start(c calls.Call, done func()) {
	ctx, cancel := context.WithCancelCause(d.base)
	ctx = logger.With(ctx, d.log.With("call_id", c.ID))

	d.mu.Lock()
	d.running[c.ID] = cancel
	d.mu.Unlock()

	d.wg.Add(1)
	d.metrics.LifecycleStarted()
	go func() {
		defer d.wg.Done()
		defer d.metrics.LifecycleEnded()
		defer func() {
			d.mu.Lock()
			delete(d.running, c.ID)
			d.mu.Unlock()
			cancel(nil)
			if done != nil {
				done()
			}
		}()
		defer func() {
			if p := recover(); p != nil {
				d.log.Error("lifecycle panic", "call_id", c.ID, "panic", fmt.Sprint(p))
			}
		}()

		err := d.run(ctx, c.ID)
		switch {
		case err == nil:
		case errors.Is(err, ErrCanceled), errors.Is(err, ErrAlreadyClaimed), errors.Is(err, calls.ErrStatusConflict):
			d.log.Info("lifecycle stopped", "call_id", c.ID, "reason", err)
		default:
			d.log.Warn("lifecycle ended with error", "call_id", c.ID, "err", err)
		}
	}()
}

// Cancel flags the call for every process and interrupts it here if it runs
// locally. The shared flag error is returned after the local cancel.
func (d *Dispatcher) Cancel(ctx context.Context, callID string) error {
	err := d.canceler.RequestCancel(ctx, callID)

	d.mu.Lock()
	cancel, ok := d.running[callID]
	d.mu.Unlock()
	if ok {
		cancel(ErrCanceled)
	}
	return err
}

// Running reports how many lifecycles this process is driving.
func (d *Dispatcher) Running() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.running)
}

// Wait blocks until every started lifecycle returns or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	ch := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
