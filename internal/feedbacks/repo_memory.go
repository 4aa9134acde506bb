package feedbacks

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repo for development and tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]Feedback
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]Feedback)}
}

// Create stores a feedback.
func (r *MemoryRepo) Create(ctx context.Context, fb Feedback) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if fb.Source == "" {
		fb.Source = SourceManual
	}
	if fb.Language == "" {
		fb.Language = "auto"
	}
	r.items[fb.ID] = fb
	return nil
}

// GetByID fetches a feedback by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Feedback, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	fb, ok := r.items[id]
	if !ok {
		return Feedback{}, ErrNotFound
	}
	return fb, nil
}

// List returns feedbacks ordered newest-first.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Feedback, error) {
	_ = ctx
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	all := make([]Feedback, 0, len(r.items))
	for _, fb := range r.items {
		all = append(all, fb)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

var _ Repo = (*MemoryRepo)(nil)
