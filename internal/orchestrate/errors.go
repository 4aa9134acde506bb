package orchestrate

import "errors"

// ErrNotFound indicates the job does not exist.
var ErrNotFound = errors.New("job not found")

// ErrInvalidTransition indicates the requested state change is not
// allowed from the job's current status.
var ErrInvalidTransition = errors.New("invalid job transition")

// ErrRetryBudgetExhausted indicates the job has used all its retries.
var ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
