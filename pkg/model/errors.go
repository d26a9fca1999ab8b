package model

import (
	"errors"
	"fmt"
)

// Admission rejections. Both are recoverable: the producer retries later.
var (
	// ErrRateLimitExceeded is returned by Enqueue when the tenant has hit
	// the per-task-type rate limit inside the trailing window.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrQueueOverflow is returned by Enqueue when the tenant's queued
	// backlog is at its depth cap (backpressure).
	ErrQueueOverflow = errors.New("queue overflow")
)

// ErrTaskNotFound is returned when a task id does not exist.
var ErrTaskNotFound = errors.New("task not found")

// InvalidTransitionError is returned when a lifecycle call is made
// against a task that is not in the expected status (e.g. MarkSucceeded
// on a task that is not running). Surfacing this instead of a silent
// no-op makes duplicate completion signals detectable.
type InvalidTransitionError struct {
	TaskID string
	From   TaskStatus
	To     TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid task transition: %s → %s (task %s)", e.From, e.To, e.TaskID)
}

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeQueueOverflow     ErrorCode = "QUEUE_OVERFLOW"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the slaq API.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates a VALIDATION_ERROR APIError.
func NewValidationError(msg string) *APIError {
	return &APIError{Code: ErrCodeValidation, Message: msg}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// APIErrorFor maps a scheduler error to its API representation.
func APIErrorFor(err error) *APIError {
	var trans *InvalidTransitionError
	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return &APIError{Code: ErrCodeRateLimitExceeded, Message: err.Error()}
	case errors.Is(err, ErrQueueOverflow):
		return &APIError{Code: ErrCodeQueueOverflow, Message: err.Error()}
	case errors.Is(err, ErrTaskNotFound):
		return &APIError{Code: ErrCodeNotFound, Message: err.Error()}
	case errors.As(err, &trans):
		return &APIError{Code: ErrCodeInvalidTransition, Message: err.Error()}
	default:
		return &APIError{Code: ErrCodeInternal, Message: err.Error()}
	}
}
