// Package lifecycle drives a call from PENDING to a terminal status.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"expertassist/internal/audit"
	"expertassist/internal/calls"
	"expertassist/internal/experts"
	"expertassist/internal/generator"
	"expertassist/internal/telephony"
	"expertassist/internal/users"
	"expertassist/pkg/logger"
	"expertassist/pkg/metrics"
)

var (
	// ErrAlreadyClaimed means another runner owns the call; nothing was written.
	ErrAlreadyClaimed = errors.New("lifecycle: call already claimed")
	// ErrCanceled means the call was ended by the user.
	ErrCanceled = errors.New("lifecycle: call canceled")
)

// CallStore is the slice of calls.Repository the orchestrator writes through.
type CallStore interface {
	Get(ctx context.Context, id string) (calls.Call, error)
	Transition(ctx context.Context, id string, from, to calls.Status) (calls.Call, error)
	Complete(ctx context.Context, id string, from calls.Status, res calls.Result) (calls.Call, error)
	Finish(ctx context.Context, id string, status calls.Status, reason string, at time.Time) (calls.Call, error)
	SetProviderCallSID(ctx context.Context, id, sid string) error
}

type ExpertStore interface {
	Get(ctx context.Context, id string) (experts.Expert, error)
}

type UserStore interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// Timing controls the simulated conversation and per-stage deadlines.
type Timing struct {
	ConnectDelay time.Duration
	CallDuration time.Duration
	StageTimeout time.Duration
}

type Deps struct {
	Calls       CallStore
	Experts     ExpertStore
	Users       UserStore
	Gateway     telephony.Gateway
	Transcriber generator.Transcriber
	Summarizer  generator.Summarizer
	Canceler    Canceler

	Audit   *audit.Service
	Metrics *metrics.Metrics
	Log     *slog.Logger
	Timing  Timing
}

// Orchestrator runs one call lifecycle per Run invocation. Every status write
// is conditional on the status it expects, so concurrent writers (end-call,
// the reconciler, a second runner) are detected rather than overwritten.
type Orchestrator struct {
	d     Deps
	log   *slog.Logger
	clock func() time.Time
}

func NewOrchestrator(d Deps) *Orchestrator {
	if d.Canceler == nil {
		d.Canceler = NewMemoryCanceler()
	}
	return &Orchestrator{d: d, log: logger.Or(d.Log), clock: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (o *Orchestrator) WithClock(clock func() time.Time) *Orchestrator {
	o.clock = clock
	return o
}

func (o *Orchestrator) Run(ctx context.Context, callID string) error {
	c, err := o.d.Calls.Get(ctx, callID)
	if err != nil {
		return err
	}
	if c.Status != calls.StatusPending {
		return ErrAlreadyClaimed
	}

	r := &run{o: o, call: c, log: o.log.With("call_id", callID)}
	if err := r.checkpoint(ctx); err != nil {
		return r.abort(ctx, err)
	}
	if _, err := o.d.Calls.Transition(ctx, callID, calls.StatusPending, calls.StatusDialing); err != nil {
		if errors.Is(err, calls.ErrStatusConflict) {
			return ErrAlreadyClaimed
		}
		return r.abort(ctx, err)
	}
	r.transitioned(calls.StatusPending, calls.StatusDialing)

	if err := r.drive(ctx); err != nil {
		return r.abort(ctx, err)
	}
	return nil
}

type run struct {
	o    *Orchestrator
	call calls.Call
	log  *slog.Logger

	connectedAt time.Time
}

func (r *run) drive(ctx context.Context) error {
	d := r.o.d
	id := r.call.ID

	var expert experts.Expert
	var user users.User
	err := r.stage(ctx, func(ctx context.Context) error {
		var err error
		if expert, err = d.Experts.Get(ctx, r.call.ExpertID); err != nil {
			return fmt.Errorf("load expert: %w", err)
		}
		if user, err = d.Users.Get(ctx, r.call.UserID); err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	to := telephony.NormalizePhone(expert.PhoneNumber)
	if to == "" {
		return fmt.Errorf("expert %s has no dialable phone number", expert.ID)
	}

	var placed telephony.PlacedCall
	err = r.stage(ctx, func(ctx context.Context) error {
		var err error
		placed, err = d.Gateway.PlaceCall(ctx, telephony.PlaceCallRequest{CallID: id, To: to})
		return err
	})
	if err != nil {
		return fmt.Errorf("place call: %w", err)
	}
	if st, ok := telephony.TranslateStatus(placed.Status); ok && st == calls.StatusFailed {
		return fmt.Errorf("place call: %w: provider reported %s", telephony.ErrRejected, placed.Status)
	}
	if err := d.Calls.SetProviderCallSID(ctx, id, placed.SID); err != nil {
		return fmt.Errorf("store provider sid: %w", err)
	}
	r.call.ProviderCallSID = placed.SID
	r.log.Info("call placed", "provider_call_sid", placed.SID, "mode", placed.Mode, "to", to)

	if err := r.transition(ctx, calls.StatusDialing, calls.StatusConnected); err != nil {
		return err
	}
	r.connectedAt = r.o.clock()
	if err := r.wait(ctx, d.Timing.ConnectDelay); err != nil {
		return err
	}
	if err := r.transition(ctx, calls.StatusConnected, calls.StatusInProgress); err != nil {
		return err
	}
	if err := r.wait(ctx, d.Timing.CallDuration); err != nil {
		return err
	}

	req := generator.TranscriptRequest{
		Goal:            r.call.Goal,
		ExpertName:      expert.Name,
		UserName:        user.FullName(),
		ContextText:     r.call.ContextText,
		ProviderCallSID: placed.SID,
	}
	if latest, err := d.Calls.Get(ctx, id); err == nil {
		req.RecordingURL = latest.RecordingURL
	}
	var transcript string
	err = r.stage(ctx, func(ctx context.Context) error {
		var err error
		transcript, err = d.Transcriber.Transcribe(ctx, req)
		return err
	})
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	if err := r.transition(ctx, calls.StatusInProgress, calls.StatusSummarizing); err != nil {
		return err
	}
	var summary string
	err = r.stage(ctx, func(ctx context.Context) error {
		var err error
		summary, err = d.Summarizer.Summarize(ctx, transcript, r.call.Goal)
		return err
	})
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	duration := r.duration(ctx, placed.SID)
	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	done, err := d.Calls.Complete(ctx, id, calls.StatusSummarizing, calls.Result{
		Transcript:      transcript,
		Summary:         summary,
		DurationSeconds: duration,
		CompletedAt:     r.o.clock(),
	})
	if err != nil {
		return err
	}
	r.transitioned(calls.StatusSummarizing, calls.StatusCompleted)
	d.Metrics.CallFinished(string(calls.StatusCompleted), duration)
	r.audit(ctx, audit.EventTypeCallCompleted, fmt.Sprintf("call completed in %ds", duration))
	r.log.Info("call completed", "duration_seconds", duration, "completed_at", done.CompletedAt)
	return nil
}

// duration prefers the provider's figure and falls back to time since connect.
func (r *run) duration(ctx context.Context, sid string) int {
	var st telephony.ProviderStatus
	err := r.stage(ctx, func(ctx context.Context) error {
		var err error
		st, err = r.o.d.Gateway.FetchStatus(ctx, sid)
		return err
	})
	if err != nil {
		r.log.Warn("provider status unavailable; using elapsed time", "err", err)
	} else if st.Duration > 0 {
		return st.Duration
	}
	return int(r.o.clock().Sub(r.connectedAt) / time.Second)
}

func (r *run) transition(ctx context.Context, from, to calls.Status) error {
	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	if _, err := r.o.d.Calls.Transition(ctx, r.call.ID, from, to); err != nil {
		return err
	}
	r.transitioned(from, to)
	return nil
}

func (r *run) transitioned(from, to calls.Status) {
	r.o.d.Metrics.CallTransition(string(from), string(to))
	r.log.Info("call transition", "from", from, "to", to)
}

// checkpoint reports whether the lifecycle should stop before its next write.
// A canceler outage does not stop the call.
func (r *run) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return interruption(ctx)
	}
	canceled, err := r.o.d.Canceler.IsCanceled(ctx, r.call.ID)
	if err != nil {
		r.log.Warn("cancel check failed", "err", err)
		return nil
	}
	if canceled {
		return ErrCanceled
	}
	return nil
}

func (r *run) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return r.checkpoint(ctx)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return interruption(ctx)
	case <-t.C:
		return nil
	}
}

func (r *run) stage(ctx context.Context, fn func(ctx context.Context) error) error {
	timeout := r.o.d.Timing.StageTimeout
	if timeout <= 0 {
		return fn(ctx)
	}
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(stageCtx)
	if err != nil && ctx.Err() != nil {
		return interruption(ctx)
	}
	return err
}

// abort records the outcome of a lifecycle that stopped early.
func (r *run) abort(ctx context.Context, cause error) error {
	d := r.o.d
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	switch {
	case errors.Is(cause, ErrCanceled):
		// The end-call path usually wins this write and audits it.
		if _, err := d.Calls.Finish(detached, r.call.ID, calls.StatusCanceled, "", r.o.clock()); err != nil &&
			!errors.Is(err, calls.ErrStatusConflict) {
			r.log.Error("record cancellation failed", "err", err)
		}
		d.Metrics.CallFinished(string(calls.StatusCanceled), 0)
		r.log.Info("call canceled")
		return ErrCanceled

	case errors.Is(cause, calls.ErrStatusConflict):
		r.log.Warn("call moved by another writer; stopping", "err", cause)
		return cause
	}

	reason := cause.Error()
	if _, err := d.Calls.Finish(detached, r.call.ID, calls.StatusFailed, reason, r.o.clock()); err != nil {
		if errors.Is(err, calls.ErrStatusConflict) {
			r.log.Warn("call already terminal; failure not recorded", "cause", cause)
			return cause
		}
		r.log.Error("record failure failed", "cause", cause, "err", err)
		return cause
	}
	d.Metrics.CallFinished(string(calls.StatusFailed), 0)
	r.audit(detached, audit.EventTypeCallFailed, reason)
	r.log.Error("call failed", "err", cause)
	return cause
}

func (r *run) audit(ctx context.Context, typ audit.EventType, msg string) {
	if r.o.d.Audit == nil {
		return
	}
	if err := r.o.d.Audit.LogCallEvent(ctx, typ, "", r.call.ID, msg); err != nil {
		r.log.Warn("audit append failed", "type", typ, "err", err)
	}
}

// interruption maps a done context to the lifecycle error it stands for.
func interruption(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrCanceled) {
		return ErrCanceled
	}
	return fmt.Errorf("lifecycle interrupted: %w", ctx.Err())
}
