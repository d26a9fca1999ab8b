package model

import "testing"

func TestTaskStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusSucceeded, true},
		{StatusFailed, true},
		{StatusBlocked, false},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("TaskStatus(%q).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestTaskStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  TaskStatus
		to    TaskStatus
		valid bool
	}{
		// Valid transitions
		{StatusQueued, StatusRunning, true},
		{StatusQueued, StatusBlocked, true},
		{StatusRunning, StatusSucceeded, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusQueued, true}, // retry
		{StatusRunning, StatusBlocked, true},
		{StatusBlocked, StatusQueued, true},
		{StatusBlocked, StatusFailed, true}, // budget spent while blocked

		// Invalid transitions
		{StatusQueued, StatusSucceeded, false},
		{StatusQueued, StatusFailed, false},
		{StatusBlocked, StatusRunning, false},
		{StatusSucceeded, StatusQueued, false},
		{StatusSucceeded, StatusFailed, false},
		{StatusFailed, StatusQueued, false},
		{StatusFailed, StatusRunning, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("TaskStatus(%q).CanTransitionTo(%q) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}
