package orchestrate

import (
	"context"
	"time"
)

// Repo abstracts job persistence and the compare-and-swap transitions of
// the job state machine. Every transition method only succeeds when the
// row is still in the expected source state, so concurrent workers and
// API calls never double-apply a transition.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, id string) (Job, error)
	List(ctx context.Context, status Status, limit, offset int) ([]Job, error)

	// ClaimDue atomically moves up to limit due queued jobs to processing
	// and returns them. Two pollers never claim the same job.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Job, error)

	// ClaimOne moves a single queued job to processing. Returns
	// ErrInvalidTransition if the job is not queued.
	ClaimOne(ctx context.Context, id string, now time.Time) (Job, error)

	// Release returns a claimed processing job to the queue untouched.
	// Unlike RequeueWithBackoff it does not consume a retry; it undoes a
	// claim that never reached the workflow engine.
	Release(ctx context.Context, id string) error

	MarkCompleted(ctx context.Context, id string, externalRef string, response map[string]any, completedAt time.Time) error

	// RequeueWithBackoff moves a processing job back to queued with an
	// incremented retry count and a future scheduled_at.
	RequeueWithBackoff(ctx context.Context, id string, errMsg string, scheduledAt time.Time) error

	// MarkFailed terminally fails a processing job.
	MarkFailed(ctx context.Context, id string, errMsg string, completedAt time.Time) error

	// Requeue moves a failed or cancelled job with retry budget left back
	// to queued. Returns ErrInvalidTransition otherwise.
	Requeue(ctx context.Context, id string, scheduledAt time.Time) (Job, error)

	// Cancel moves a queued or processing job to cancelled. Returns
	// ErrInvalidTransition for terminal jobs.
	Cancel(ctx context.Context, id string, cancelledAt time.Time) (Job, error)
}
