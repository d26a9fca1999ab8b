package model

import (
	"time"
)

// TaskType identifies the kind of pipeline work a task carries. The type
// determines the applicable rate limit, default priority, and latency
// target.
type TaskType string

const (
	TaskTypeConsolidation TaskType = "consolidation"
	TaskTypeCritique      TaskType = "critique"
	TaskTypeEvaluation    TaskType = "evaluation"
)

// PipelineTask is a tenant-scoped unit of asynchronous pipeline work.
// The scheduler owns every field mutation after creation; payloads are
// reached only through the opaque InputRef/TargetRef references.
type PipelineTask struct {
	ID       string     `json:"id"`
	TenantID string     `json:"tenant_id"`
	TaskType TaskType   `json:"task_type"`
	Status   TaskStatus `json:"status"`

	// Priority orders tasks within a tenant's queue: lower numeric value
	// means higher precedence (priority-queue convention, applied
	// consistently everywhere tasks are compared).
	Priority int `json:"priority"`

	// SLADeadline is the absolute time by which the task should complete.
	// A task past its deadline while still queued is "breached" and ranks
	// ahead of every non-breached task regardless of priority.
	SLADeadline time.Time `json:"sla_deadline"`

	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	LastError   string `json:"last_error,omitempty"`

	// BlockedReason is set while Status is blocked (e.g. "quota",
	// "backpressure") and cleared on unblock.
	BlockedReason string `json:"blocked_reason,omitempty"`

	EstimatedCost float64 `json:"estimated_cost"`
	ActualCost    float64 `json:"actual_cost"`

	// InputRef and TargetRef are opaque references to the work payload
	// and the resource it operates on. The scheduler never inspects them.
	InputRef  string `json:"input_ref"`
	TargetRef string `json:"target_ref,omitempty"`

	// NotBefore delays dequeue eligibility after a retry; zero means
	// immediately eligible.
	NotBefore time.Time `json:"not_before,omitzero"`

	CreatedAt time.Time `json:"created_at"`

	// StartedAt records the first transition to running and survives
	// retries, so queue latency always measures from the first claim.
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Breached reports whether the task's SLA deadline has passed at now.
func (t *PipelineTask) Breached(now time.Time) bool {
	return now.After(t.SLADeadline)
}

// Remaining returns the signed time left until the SLA deadline at now.
// Negative for breached tasks (the overdue amount).
func (t *PipelineTask) Remaining(now time.Time) time.Duration {
	return t.SLADeadline.Sub(now)
}

// Eligible reports whether the task may be claimed at now: queued and
// past any retry hold-off.
func (t *PipelineTask) Eligible(now time.Time) bool {
	if t.Status != StatusQueued {
		return false
	}
	return t.NotBefore.IsZero() || !now.Before(t.NotBefore)
}

// QueueStats is a read-only snapshot of queue composition by status.
type QueueStats struct {
	TenantID     string             `json:"tenant_id,omitempty"`
	StatusCounts map[TaskStatus]int `json:"status_counts"`
	Timestamp    time.Time          `json:"timestamp"`
}
