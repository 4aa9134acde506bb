package orchestrate

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoClaimOneGuardsQueuedStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "feedback_id", "analysis_id", "kind", "status", "payload", "response",
		"external_ref", "error_message", "retry_count", "max_retries", "scheduled_at",
		"started_at", "completed_at", "created_at", "updated_at",
	}).AddRow(
		"job-1", "fb-1", "analysis-1", "ticket", "processing", []byte(`{}`), nil,
		nil, nil, 0, 3, now,
		now, nil, now, now,
	)

	mock.ExpectQuery("UPDATE orchestrate_jobs(?s).*WHERE id = \\$2 AND status = 'queued'(?s).*RETURNING").
		WithArgs(now, "job-1").
		WillReturnRows(rows)

	job, err := repo.ClaimOne(context.Background(), "job-1", now)
	if err != nil {
		t.Fatalf("ClaimOne: %v", err)
	}
	if job.Status != StatusProcessing {
		t.Errorf("status = %s, want processing", job.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoRequeueWithBackoffGuardsRetryBudget(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	scheduledAt := time.Now().UTC().Add(2 * time.Minute)

	mock.ExpectExec("UPDATE orchestrate_jobs(?s).*retry_count = retry_count \\+ 1(?s).*AND retry_count < max_retries").
		WithArgs("engine down", scheduledAt, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RequeueWithBackoff(context.Background(), "job-1", "engine down", scheduledAt); err != nil {
		t.Fatalf("RequeueWithBackoff: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
