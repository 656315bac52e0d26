package calls

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory call store with the same conditional-write
// semantics as PostgresRepository. Intended for tests and local wiring.
type MemoryRepo struct {
	mu      sync.Mutex
	calls   map[string]Call
	experts map[string]ExpertSummary
	clock   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{calls: map[string]Call{}, experts: map[string]ExpertSummary{}, clock: time.Now}
}

// WithClock overrides the clock used for updatedAt stamps.
func (r *MemoryRepo) WithClock(clock func() time.Time) *MemoryRepo {
	r.clock = clock
	return r
}

// PutExpert registers expert details joined into ListForOwner results.
func (r *MemoryRepo) PutExpert(id string, e ExpertSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.experts[id] = e
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[c.ID]; ok {
		return Call{}, fmt.Errorf("call %s already exists", c.ID)
	}
	c.ContextLinks = nonNilLinks(c.ContextLinks)
	r.calls[c.ID] = detach(c)
	return detach(c), nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return detach(c), nil
}

func (r *MemoryRepo) GetForOwner(ctx context.Context, userID, id string) (Call, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return Call{}, err
	}
	if c.UserID != userID {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListForOwner(ctx context.Context, userID string, f ListFilter) ([]CallWithExpert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallWithExpert, 0)
	for _, c := range r.calls {
		if c.UserID != userID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		row := CallWithExpert{Call: detach(c)}
		if e, ok := r.experts[c.ExpertID]; ok {
			e := e
			row.Expert = &e
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Transition(ctx context.Context, id string, from, to Status) (Call, error) {
	return r.update(id, func(c *Call) error {
		if c.Status != from {
			return fmt.Errorf("%w: current status %s", ErrStatusConflict, c.Status)
		}
		c.Status = to
		return nil
	})
}

func (r *MemoryRepo) Complete(ctx context.Context, id string, from Status, res Result) (Call, error) {
	return r.update(id, func(c *Call) error {
		if c.Status != from {
			return fmt.Errorf("%w: current status %s", ErrStatusConflict, c.Status)
		}
		d := res.DurationSeconds
		at := res.CompletedAt.UTC()
		c.Status = StatusCompleted
		c.Transcript = res.Transcript
		c.Summary = res.Summary
		c.DurationSeconds = &d
		c.CompletedAt = &at
		return nil
	})
}

func (r *MemoryRepo) Finish(ctx context.Context, id string, status Status, reason string, at time.Time) (Call, error) {
	if status != StatusFailed && status != StatusCanceled {
		return Call{}, fmt.Errorf("%w: finish with %q", ErrInvalidArgument, status)
	}
	return r.update(id, func(c *Call) error {
		if c.Status.Terminal() {
			return fmt.Errorf("%w: current status %s", ErrStatusConflict, c.Status)
		}
		at := at.UTC()
		c.Status = status
		if status == StatusFailed {
			c.FailureReason = reason
		}
		c.CompletedAt = &at
		return nil
	})
}

func (r *MemoryRepo) SetProviderCallSID(ctx context.Context, id, sid string) error {
	_, err := r.update(id, func(c *Call) error {
		c.ProviderCallSID = sid
		return nil
	})
	return err
}

func (r *MemoryRepo) SetRecordingURL(ctx context.Context, providerCallSID, url string) (Call, error) {
	if providerCallSID == "" {
		return Call{}, ErrNotFound
	}
	r.mu.Lock()
	var id string
	for _, c := range r.calls {
		if c.ProviderCallSID == providerCallSID {
			id = c.ID
			break
		}
	}
	r.mu.Unlock()
	if id == "" {
		return Call{}, ErrNotFound
	}
	return r.update(id, func(c *Call) error {
		c.RecordingURL = url
		return nil
	})
}

func (r *MemoryRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.calls {
		if c.Status.Active() && c.UpdatedAt.Before(before) {
			out = append(out, detach(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) CountByStatus(ctx context.Context, userID string) (map[Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[Status]int{}
	for _, c := range r.calls {
		if c.UserID == userID {
			out[c.Status]++
		}
	}
	return out, nil
}

func (r *MemoryRepo) update(id string, fn func(c *Call) error) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	if err := fn(&c); err != nil {
		return Call{}, err
	}
	c.UpdatedAt = r.clock().UTC()
	r.calls[id] = c
	return detach(c), nil
}

// detach copies the slice and pointer fields so callers never share storage
// with the repo.
func detach(c Call) Call {
	c.ContextLinks = append([]string{}, c.ContextLinks...)
	if c.DurationSeconds != nil {
		d := *c.DurationSeconds
		c.DurationSeconds = &d
	}
	if c.CompletedAt != nil {
		at := *c.CompletedAt
		c.CompletedAt = &at
	}
	return c
}
