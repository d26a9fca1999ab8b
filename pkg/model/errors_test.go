package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestInvalidTransitionError_Message(t *testing.T) {
	err := &InvalidTransitionError{TaskID: "task_abc", From: StatusSucceeded, To: StatusSucceeded}
	want := "invalid task transition: succeeded → succeeded (task task_abc)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAPIErrorFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"rate limit", ErrRateLimitExceeded, ErrCodeRateLimitExceeded},
		{"wrapped rate limit", fmt.Errorf("enqueue: %w", ErrRateLimitExceeded), ErrCodeRateLimitExceeded},
		{"overflow", ErrQueueOverflow, ErrCodeQueueOverflow},
		{"not found", ErrTaskNotFound, ErrCodeNotFound},
		{"transition", &InvalidTransitionError{TaskID: "t", From: StatusQueued, To: StatusSucceeded}, ErrCodeInvalidTransition},
		{"unknown", errors.New("boom"), ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := APIErrorFor(tt.err); got.Code != tt.code {
				t.Errorf("APIErrorFor(%v).Code = %s, want %s", tt.err, got.Code, tt.code)
			}
		})
	}
}
