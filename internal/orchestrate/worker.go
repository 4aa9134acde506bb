package orchestrate

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"feedback-backend/internal/shared/telemetry"
)

// Worker polls for due queued jobs and executes them on a bounded pool.
type Worker struct {
	Svc         *Service
	PollEvery   time.Duration
	Concurrency int

	pool *ants.Pool
	wg   sync.WaitGroup
}

// NewWorker constructs a Worker.
func NewWorker(svc *Service, pollEvery time.Duration, concurrency int) (*Worker, error) {
	if pollEvery <= 0 {
		pollEvery = 10 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	pool, err := ants.NewPool(concurrency, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	return &Worker{
		Svc:         svc,
		PollEvery:   pollEvery,
		Concurrency: concurrency,
		pool:        pool,
	}, nil
}

// Run polls until the context is cancelled, then drains in-flight jobs.
func (w *Worker) Run(ctx context.Context) {
	telemetry.Info("worker_started", map[string]any{
		"poll_every_s": w.PollEvery.Seconds(),
		"concurrency":  w.Concurrency,
	})

	ticker := time.NewTicker(w.PollEvery)
	defer ticker.Stop()

	// Poll once on startup so a restart picks up backlog immediately.
	w.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			w.pool.Release()
			telemetry.Info("worker_stopped", nil)
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *Worker) pollOnce(ctx context.Context) {
	free := w.pool.Free()
	if free <= 0 {
		return
	}

	jobs, err := w.Svc.Repo.ClaimDue(ctx, time.Now().UTC(), free)
	if err != nil {
		telemetry.Error("worker_claim_failed", map[string]any{"error": err.Error()})
		return
	}
	if len(jobs) == 0 {
		return
	}

	telemetry.Info("worker_claimed", map[string]any{"count": len(jobs)})

	// Claimed jobs are drained after the run context is cancelled on
	// shutdown. Executions and their status writes run detached so a
	// drain does not fail healthy jobs or strand rows in processing.
	execCtx := context.WithoutCancel(ctx)
	for _, job := range jobs {
		w.wg.Add(1)
		if err := w.pool.Submit(func() {
			defer w.wg.Done()
			w.Svc.Execute(execCtx, job)
		}); err != nil {
			w.wg.Done()
			// Could not hand the claimed job to the pool; undo the claim so
			// the next poll picks it up with its retry budget intact.
			if releaseErr := w.Svc.Repo.Release(execCtx, job.ID); releaseErr != nil {
				telemetry.Error("worker_release_failed", map[string]any{
					"job_id": job.ID,
					"error":  releaseErr.Error(),
				})
			}
		}
	}
}
