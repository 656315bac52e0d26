package experts

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory expert store for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	experts map[string]Expert
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{experts: map[string]Expert{}} }

func (r *MemoryRepo) Create(ctx context.Context, e Expert) (Expert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.experts[e.ID] = e
	return e, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Expert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.experts[id]
	if !ok {
		return Expert{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepo) GetForOwner(ctx context.Context, userID, id string) (Expert, error) {
	e, err := r.Get(ctx, id)
	if err != nil {
		return Expert{}, err
	}
	if e.UserID != userID {
		return Expert{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepo) ListForOwner(ctx context.Context, userID string, category Category) ([]Expert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Expert, 0)
	for _, e := range r.experts {
		if e.UserID != userID {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) Update(ctx context.Context, e Expert) (Expert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.experts[e.ID]
	if !ok || cur.UserID != e.UserID {
		return Expert{}, ErrNotFound
	}
	e.CreatedAt = cur.CreatedAt
	r.experts[e.ID] = e
	return e, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.experts[id]
	if !ok || cur.UserID != userID {
		return ErrNotFound
	}
	delete(r.experts, id)
	return nil
}
