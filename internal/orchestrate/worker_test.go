package orchestrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"feedback-backend/internal/analyses"
)

// ctxAwareWorkflow succeeds only when the call context is still live,
// like a real HTTP client would.
type ctxAwareWorkflow struct{}

func (ctxAwareWorkflow) ExecuteWorkflow(ctx context.Context, kind Kind, payload map[string]any) (string, map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	return "run-1", map[string]any{"ok": true}, nil
}

func TestWorkerExecutesClaimedJobsAfterShutdown(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, analyses.NewMemoryRepo(), ctxAwareWorkflow{})
	job := seedJob(t, repo, StatusQueued, 0, 3)

	w, err := NewWorker(svc, time.Hour, 2)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	defer w.pool.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.pollOnce(ctx)
	w.wg.Wait()

	got, err := repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed despite cancelled run context", got.Status)
	}
	if got.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", got.RetryCount)
	}
	if got.ExternalRef != "run-1" {
		t.Errorf("external ref = %s, want run-1", got.ExternalRef)
	}
}

func TestReleaseReturnsClaimWithBudgetIntact(t *testing.T) {
	repo := NewMemoryRepo()
	job := seedJob(t, repo, StatusQueued, 1, 3)

	if _, err := repo.ClaimOne(context.Background(), job.ID, time.Now().UTC()); err != nil {
		t.Fatalf("ClaimOne: %v", err)
	}
	if err := repo.Release(context.Background(), job.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}

	got, err := repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusQueued {
		t.Errorf("status = %s, want queued", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want unchanged 1", got.RetryCount)
	}
	if got.StartedAt != nil {
		t.Error("started_at must be cleared by release")
	}

	if err := repo.Release(context.Background(), job.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("release of a queued job: err = %v, want ErrInvalidTransition", err)
	}
}
