package orchestrate

import "time"

// Status is the lifecycle state of an automation job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s,
// other than an explicit retry.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Kind is the type of automation a job performs.
type Kind string

const (
	KindTicket     Kind = "ticket"
	KindAlert      Kind = "alert"
	KindAssignment Kind = "assignment"
	KindFollowup   Kind = "followup"
)

// Job is one automation action derived from an analysis. Jobs execute
// asynchronously against the workflow engine and retry with backoff on
// failure until the retry budget is spent.
type Job struct {
	ID           string         `json:"id"`
	FeedbackID   string         `json:"feedback_id"`
	AnalysisID   string         `json:"analysis_id"`
	Kind         Kind           `json:"kind"`
	Status       Status         `json:"status"`
	Payload      map[string]any `json:"payload"`
	Response     map[string]any `json:"response,omitempty"`
	ExternalRef  string         `json:"external_ref,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	RetryCount   int            `json:"retry_count"`
	MaxRetries   int            `json:"max_retries"`
	ScheduledAt  time.Time      `json:"scheduled_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CanRetry reports whether a manual retry is allowed: only failed or
// cancelled jobs with retry budget left go back to the queue.
func (j Job) CanRetry() bool {
	return (j.Status == StatusFailed || j.Status == StatusCancelled) && j.RetryCount < j.MaxRetries
}

// CanCancel reports whether the job can be cancelled: only non-terminal
// jobs.
func (j Job) CanCancel() bool {
	return j.Status == StatusQueued || j.Status == StatusProcessing
}
