package orchestrate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres. State transitions are single
// UPDATE statements guarded by the expected source status, so they act
// as compare-and-swap operations.
type PGRepo struct {
	DB *sql.DB
}

const jobColumns = `id, feedback_id, analysis_id, kind, status, payload, response, external_ref, error_message,
       retry_count, max_retries, scheduled_at, started_at, completed_at, created_at, updated_at`

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO orchestrate_jobs (
    id, feedback_id, analysis_id, kind, status, payload,
    retry_count, max_retries, scheduled_at, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	payload, err := marshalJSONB(job.Payload)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(
		ctx,
		query,
		job.ID,
		job.FeedbackID,
		job.AnalysisID,
		string(job.Kind),
		string(job.Status),
		payload,
		job.RetryCount,
		job.MaxRetries,
		job.ScheduledAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID fetches a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Job, error) {
	const query = `
SELECT ` + jobColumns + `
FROM orchestrate_jobs
WHERE id = $1
LIMIT 1`
	row := r.DB.QueryRowContext(ctx, query, id)
	job, err := scanJob(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

// List returns jobs newest-first, optionally filtered by status.
func (r *PGRepo) List(ctx context.Context, status Status, limit, offset int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var rows *sql.Rows
	var err error
	if status == "" {
		const query = `
SELECT ` + jobColumns + `
FROM orchestrate_jobs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`
		rows, err = r.DB.QueryContext(ctx, query, limit, offset)
	} else {
		const query = `
SELECT ` + jobColumns + `
FROM orchestrate_jobs
WHERE status = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
		rows, err = r.DB.QueryContext(ctx, query, string(status), limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ClaimDue atomically claims due queued jobs. FOR UPDATE SKIP LOCKED
// keeps concurrent pollers from blocking on each other's claims.
func (r *PGRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
UPDATE orchestrate_jobs
SET status = 'processing', started_at = $1, updated_at = $1
WHERE id IN (
    SELECT id FROM orchestrate_jobs
    WHERE status = 'queued' AND scheduled_at <= $1
    ORDER BY scheduled_at
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns

	rows, err := r.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ClaimOne claims a specific queued job for immediate execution.
func (r *PGRepo) ClaimOne(ctx context.Context, id string, now time.Time) (Job, error) {
	const query = `
UPDATE orchestrate_jobs
SET status = 'processing', started_at = $1, updated_at = $1
WHERE id = $2 AND status = 'queued'
RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query, now, id)
	job, err := scanJob(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, r.transitionError(ctx, id)
		}
		return Job{}, err
	}
	return job, nil
}

// Release un-claims a processing job without touching its retry count.
func (r *PGRepo) Release(ctx context.Context, id string) error {
	const query = `
UPDATE orchestrate_jobs
SET status = 'queued', started_at = NULL, updated_at = now()
WHERE id = $1 AND status = 'processing'`

	res, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return r.requireRow(ctx, res, id)
}

// MarkCompleted finishes a processing job successfully.
func (r *PGRepo) MarkCompleted(ctx context.Context, id string, externalRef string, response map[string]any, completedAt time.Time) error {
	const query = `
UPDATE orchestrate_jobs
SET status = 'completed', external_ref = $1, response = $2, error_message = NULL,
    completed_at = $3, updated_at = $3
WHERE id = $4 AND status = 'processing'`

	resp, err := marshalJSONB(response)
	if err != nil {
		return err
	}
	var ref sql.NullString
	if externalRef != "" {
		ref = sql.NullString{String: externalRef, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx, query, ref, resp, completedAt, id)
	if err != nil {
		return err
	}
	return r.requireRow(ctx, res, id)
}

// RequeueWithBackoff returns a processing job to the queue after a failed
// execution, consuming one retry.
func (r *PGRepo) RequeueWithBackoff(ctx context.Context, id string, errMsg string, scheduledAt time.Time) error {
	const query = `
UPDATE orchestrate_jobs
SET status = 'queued', error_message = $1, retry_count = retry_count + 1,
    scheduled_at = $2, started_at = NULL, updated_at = now()
WHERE id = $3 AND status = 'processing' AND retry_count < max_retries`

	res, err := r.DB.ExecContext(ctx, query, errMsg, scheduledAt, id)
	if err != nil {
		return err
	}
	return r.requireRow(ctx, res, id)
}

// MarkFailed terminally fails a processing job.
func (r *PGRepo) MarkFailed(ctx context.Context, id string, errMsg string, completedAt time.Time) error {
	const query = `
UPDATE orchestrate_jobs
SET status = 'failed', error_message = $1, completed_at = $2, updated_at = $2
WHERE id = $3 AND status = 'processing'`

	res, err := r.DB.ExecContext(ctx, query, errMsg, completedAt, id)
	if err != nil {
		return err
	}
	return r.requireRow(ctx, res, id)
}

// Requeue manually returns a failed or cancelled job to the queue.
func (r *PGRepo) Requeue(ctx context.Context, id string, scheduledAt time.Time) (Job, error) {
	const query = `
UPDATE orchestrate_jobs
SET status = 'queued', error_message = NULL, scheduled_at = $1,
    started_at = NULL, completed_at = NULL, updated_at = now()
WHERE id = $2 AND status IN ('failed', 'cancelled') AND retry_count < max_retries
RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query, scheduledAt, id)
	job, err := scanJob(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, r.retryError(ctx, id)
		}
		return Job{}, err
	}
	return job, nil
}

// Cancel moves a queued or processing job to cancelled.
func (r *PGRepo) Cancel(ctx context.Context, id string, cancelledAt time.Time) (Job, error) {
	const query = `
UPDATE orchestrate_jobs
SET status = 'cancelled', completed_at = $1, updated_at = $1
WHERE id = $2 AND status IN ('queued', 'processing')
RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query, cancelledAt, id)
	job, err := scanJob(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, r.transitionError(ctx, id)
		}
		return Job{}, err
	}
	return job, nil
}

// transitionError distinguishes a missing job from a job in the wrong
// state after a zero-row CAS update.
func (r *PGRepo) transitionError(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (r *PGRepo) retryError(ctx context.Context, id string) error {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if (job.Status == StatusFailed || job.Status == StatusCancelled) && job.RetryCount >= job.MaxRetries {
		return ErrRetryBudgetExhausted
	}
	return ErrInvalidTransition
}

func (r *PGRepo) requireRow(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return r.transitionError(ctx, id)
	}
	return nil
}

func scanJob(scan func(dest ...any) error) (Job, error) {
	var job Job
	var kind, status string
	var payload, response []byte
	var externalRef, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	if err := scan(
		&job.ID,
		&job.FeedbackID,
		&job.AnalysisID,
		&kind,
		&status,
		&payload,
		&response,
		&externalRef,
		&errMsg,
		&job.RetryCount,
		&job.MaxRetries,
		&job.ScheduledAt,
		&startedAt,
		&completedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return Job{}, err
	}
	job.Kind = Kind(kind)
	job.Status = Status(status)
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &job.Payload)
	}
	if len(response) > 0 {
		_ = json.Unmarshal(response, &job.Response)
	}
	if externalRef.Valid {
		job.ExternalRef = externalRef.String
	}
	if errMsg.Valid {
		job.ErrorMessage = errMsg.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

func marshalJSONB(v map[string]any) ([]byte, error) {
	if v == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(v)
}

var _ Repo = (*PGRepo)(nil)
