package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"feedback-backend/internal/analyses"
	"feedback-backend/internal/shared/metrics"
	"feedback-backend/internal/shared/telemetry"
)

const defaultMaxRetries = 3

// Backoff bounds for automatic retries of failed executions.
const (
	retryBaseDelay = time.Minute
	retryMaxDelay  = 15 * time.Minute
)

// AnalysisSource provides the stored analysis a manual trigger builds
// its job payload from.
type AnalysisSource interface {
	GetByFeedbackID(ctx context.Context, feedbackID string) (analyses.Analysis, error)
}

// Service implements the automation job use cases: dispatching jobs from
// completed analyses, executing them against the workflow engine, and
// the manual trigger, retry, and cancel operations.
type Service struct {
	Repo       Repo
	Analyses   AnalysisSource
	Workflow   WorkflowClient
	MaxRetries int
}

// NewService constructs a Service.
func NewService(repo Repo, source AnalysisSource, workflow WorkflowClient) *Service {
	return &Service{Repo: repo, Analyses: source, Workflow: workflow, MaxRetries: defaultMaxRetries}
}

// DispatchJobs evaluates the trigger rules for a completed analysis and
// enqueues one job per matched rule.
func (s *Service) DispatchJobs(ctx context.Context, a analyses.Analysis) error {
	specs := EvaluateRules(a)
	if len(specs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for _, spec := range specs {
		job := Job{
			ID:          uuid.NewString(),
			FeedbackID:  a.FeedbackID,
			AnalysisID:  a.ID,
			Kind:        spec.Kind,
			Status:      StatusQueued,
			Payload:     spec.Payload,
			MaxRetries:  maxRetries,
			ScheduledAt: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.Create(ctx, job); err != nil {
			return fmt.Errorf("enqueue %s job: %w", spec.Kind, err)
		}
		metrics.IncJobDispatched()
		telemetry.Info("job_dispatched", map[string]any{
			"job_id":      job.ID,
			"feedback_id": job.FeedbackID,
			"analysis_id": job.AnalysisID,
			"kind":        string(job.Kind),
		})
	}
	return nil
}

// Execute runs one claimed job against the workflow engine and applies
// the resulting transition: completed on success, requeued with backoff
// while retries remain, terminally failed otherwise.
func (s *Service) Execute(ctx context.Context, job Job) {
	started := time.Now()

	externalRef, response, err := s.Workflow.ExecuteWorkflow(ctx, job.Kind, job.Payload)
	now := time.Now().UTC()
	durationMs := float64(time.Since(started).Milliseconds())

	if err == nil {
		if markErr := s.Repo.MarkCompleted(ctx, job.ID, externalRef, response, now); markErr != nil {
			telemetry.Error("job_complete_failed", map[string]any{
				"job_id": job.ID,
				"error":  markErr.Error(),
			})
			return
		}
		metrics.IncJobCompleted()
		metrics.ObserveJobDurationMs(durationMs)
		telemetry.Info("job_completed", map[string]any{
			"job_id":       job.ID,
			"kind":         string(job.Kind),
			"external_ref": externalRef,
			"duration_ms":  durationMs,
		})
		return
	}

	if job.RetryCount < job.MaxRetries {
		delay := retryDelay(job.RetryCount + 1)
		if requeueErr := s.Repo.RequeueWithBackoff(ctx, job.ID, err.Error(), now.Add(delay)); requeueErr != nil {
			telemetry.Error("job_requeue_failed", map[string]any{
				"job_id": job.ID,
				"error":  requeueErr.Error(),
			})
			return
		}
		metrics.IncJobRetried()
		telemetry.Warn("job_retrying", map[string]any{
			"job_id":      job.ID,
			"kind":        string(job.Kind),
			"retry_count": job.RetryCount + 1,
			"max_retries": job.MaxRetries,
			"delay_s":     delay.Seconds(),
			"error":       err.Error(),
		})
		return
	}

	if failErr := s.Repo.MarkFailed(ctx, job.ID, err.Error(), now); failErr != nil {
		telemetry.Error("job_fail_mark_failed", map[string]any{
			"job_id": job.ID,
			"error":  failErr.Error(),
		})
		return
	}
	metrics.IncJobFailed()
	telemetry.Error("job_failed", map[string]any{
		"job_id":      job.ID,
		"kind":        string(job.Kind),
		"retry_count": job.RetryCount,
		"error":       err.Error(),
	})
}

// Trigger enqueues a job of the given kind for a feedback's stored
// analysis and executes it immediately, bypassing the rule table. The
// feedback must have been analyzed first.
func (s *Service) Trigger(ctx context.Context, feedbackID string, kind Kind) (Job, error) {
	a, err := s.Analyses.GetByFeedbackID(ctx, feedbackID)
	if err != nil {
		return Job{}, err
	}

	now := time.Now().UTC()
	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	job := Job{
		ID:          uuid.NewString(),
		FeedbackID:  a.FeedbackID,
		AnalysisID:  a.ID,
		Kind:        kind,
		Status:      StatusQueued,
		Payload:     manualPayload(a, kind),
		MaxRetries:  maxRetries,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		return Job{}, fmt.Errorf("enqueue %s job: %w", kind, err)
	}
	telemetry.Info("job_triggered", map[string]any{
		"job_id":      job.ID,
		"feedback_id": job.FeedbackID,
		"kind":        string(kind),
	})

	claimed, err := s.Repo.ClaimOne(ctx, job.ID, now)
	if err != nil {
		// Lost the claim to a concurrent worker poll; report the row as-is.
		return s.Repo.GetByID(ctx, job.ID)
	}
	s.Execute(ctx, claimed)
	return s.Repo.GetByID(ctx, job.ID)
}

// Retry returns a failed or cancelled job with retry budget left to the
// queue for immediate pickup.
func (s *Service) Retry(ctx context.Context, id string) (Job, error) {
	job, err := s.Repo.Requeue(ctx, id, time.Now().UTC())
	if err != nil {
		return Job{}, err
	}
	telemetry.Info("job_requeued", map[string]any{
		"job_id":      job.ID,
		"retry_count": job.RetryCount,
	})
	return job, nil
}

// Cancel stops a queued or processing job.
func (s *Service) Cancel(ctx context.Context, id string) (Job, error) {
	job, err := s.Repo.Cancel(ctx, id, time.Now().UTC())
	if err != nil {
		return Job{}, err
	}
	metrics.IncJobCancelled()
	telemetry.Info("job_cancelled", map[string]any{
		"job_id": job.ID,
		"kind":   string(job.Kind),
	})
	return job, nil
}

// Get returns one job.
func (s *Service) Get(ctx context.Context, id string) (Job, error) {
	return s.Repo.GetByID(ctx, id)
}

// List returns jobs, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]Job, error) {
	return s.Repo.List(ctx, status, limit, offset)
}

// retryDelay is bounded exponential backoff: base*2^(attempt-1), capped.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := retryBaseDelay << (attempt - 1)
	if delay > retryMaxDelay || delay <= 0 {
		return retryMaxDelay
	}
	return delay
}

var _ analyses.JobDispatcher = (*Service)(nil)
