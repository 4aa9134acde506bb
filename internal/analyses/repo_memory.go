package analyses

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repo for development and tests. Rows are
// keyed by feedback ID, matching the UNIQUE(feedback_id) constraint of
// the Postgres schema.
type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]Analysis
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]Analysis)}
}

// Upsert replaces the analysis for the feedback.
func (r *MemoryRepo) Upsert(ctx context.Context, a Analysis) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[a.FeedbackID]; ok {
		// Keep the original row identity and creation time on replace.
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	}
	r.items[a.FeedbackID] = a
	return nil
}

// GetByFeedbackID fetches the analysis for a feedback.
func (r *MemoryRepo) GetByFeedbackID(ctx context.Context, feedbackID string) (Analysis, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[feedbackID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

var _ Repo = (*MemoryRepo)(nil)
