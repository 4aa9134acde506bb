package orchestrate

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for development and tests. It applies
// the same transition guards as the Postgres implementation.
type MemoryRepo struct {
	mu    sync.Mutex
	items map[string]Job
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]Job)}
}

// Create stores a job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[job.ID] = job
	return nil
}

// GetByID fetches a job by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Job, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.items[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// List returns jobs newest-first, optionally filtered by status.
func (r *MemoryRepo) List(ctx context.Context, status Status, limit, offset int) ([]Job, error) {
	_ = ctx
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.Lock()
	all := make([]Job, 0, len(r.items))
	for _, job := range r.items {
		if status != "" && job.Status != status {
			continue
		}
		all = append(all, job)
	}
	r.mu.Unlock()

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

// ClaimDue atomically claims due queued jobs.
func (r *MemoryRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	_ = ctx
	if limit <= 0 {
		limit = 10
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var due []Job
	for _, job := range r.items {
		if job.Status == StatusQueued && !job.ScheduledAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]Job, 0, len(due))
	for _, job := range due {
		started := now
		job.Status = StatusProcessing
		job.StartedAt = &started
		job.UpdatedAt = now
		r.items[job.ID] = job
		out = append(out, job)
	}
	return out, nil
}

// ClaimOne claims a specific queued job.
func (r *MemoryRepo) ClaimOne(ctx context.Context, id string, now time.Time) (Job, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.items[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if job.Status != StatusQueued {
		return Job{}, ErrInvalidTransition
	}
	started := now
	job.Status = StatusProcessing
	job.StartedAt = &started
	job.UpdatedAt = now
	r.items[id] = job
	return job, nil
}

// Release un-claims a processing job without touching its retry count.
func (r *MemoryRepo) Release(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	job.Status = StatusQueued
	job.StartedAt = nil
	job.UpdatedAt = time.Now().UTC()
	r.items[id] = job
	return nil
}

// MarkCompleted finishes a processing job successfully.
func (r *MemoryRepo) MarkCompleted(ctx context.Context, id string, externalRef string, response map[string]any, completedAt time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	done := completedAt
	job.Status = StatusCompleted
	job.ExternalRef = externalRef
	job.Response = response
	job.ErrorMessage = ""
	job.CompletedAt = &done
	job.UpdatedAt = completedAt
	r.items[id] = job
	return nil
}

// RequeueWithBackoff returns a processing job to the queue, consuming one
// retry.
func (r *MemoryRepo) RequeueWithBackoff(ctx context.Context, id string, errMsg string, scheduledAt time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusProcessing || job.RetryCount >= job.MaxRetries {
		return ErrInvalidTransition
	}
	job.Status = StatusQueued
	job.ErrorMessage = errMsg
	job.RetryCount++
	job.ScheduledAt = scheduledAt
	job.StartedAt = nil
	job.UpdatedAt = time.Now().UTC()
	r.items[id] = job
	return nil
}

// MarkFailed terminally fails a processing job.
func (r *MemoryRepo) MarkFailed(ctx context.Context, id string, errMsg string, completedAt time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	done := completedAt
	job.Status = StatusFailed
	job.ErrorMessage = errMsg
	job.CompletedAt = &done
	job.UpdatedAt = completedAt
	r.items[id] = job
	return nil
}

// Requeue manually returns a failed or cancelled job to the queue.
func (r *MemoryRepo) Requeue(ctx context.Context, id string, scheduledAt time.Time) (Job, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.items[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if job.Status != StatusFailed && job.Status != StatusCancelled {
		return Job{}, ErrInvalidTransition
	}
	if job.RetryCount >= job.MaxRetries {
		return Job{}, ErrRetryBudgetExhausted
	}
	job.Status = StatusQueued
	job.ErrorMessage = ""
	job.ScheduledAt = scheduledAt
	job.StartedAt = nil
	job.CompletedAt = nil
	job.UpdatedAt = time.Now().UTC()
	r.items[id] = job
	return job, nil
}

// Cancel moves a queued or processing job to cancelled.
func (r *MemoryRepo) Cancel(ctx context.Context, id string, cancelledAt time.Time) (Job, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.items[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if !job.CanCancel() {
		return Job{}, ErrInvalidTransition
	}
	done := cancelledAt
	job.Status = StatusCancelled
	job.CompletedAt = &done
	job.UpdatedAt = cancelledAt
	r.items[id] = job
	return job, nil
}

var _ Repo = (*MemoryRepo)(nil)
