package feedbacks

import "errors"

// ErrNotFound indicates the feedback does not exist.
var ErrNotFound = errors.New("feedback not found")

// ErrInvalidInput indicates the request failed validation.
var ErrInvalidInput = errors.New("invalid input")
