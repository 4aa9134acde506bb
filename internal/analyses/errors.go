package analyses

import "errors"

// ErrNotFound indicates no analysis exists for the feedback.
var ErrNotFound = errors.New("analysis not found")

// ErrInvalidInput indicates the request failed validation.
var ErrInvalidInput = errors.New("invalid input")
