package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures list queries with pagination and filtering.
type ListOptions struct {
	Limit    int
	Offset   int
	TenantID string // Optional tenant filter
	Status   string // Optional status filter
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 20, Offset: 0}
}

// Clamp enforces limits (max 100, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// EnqueueRequest is the body of POST /api/v1/tasks.
// Priority is a pointer so that an omitted priority falls back to the
// task type's configured default while an explicit caller value, even
// zero, is authoritative.
type EnqueueRequest struct {
	TenantID      string    `json:"tenant_id"`
	TaskType      TaskType  `json:"task_type"`
	InputRef      string    `json:"input_ref"`
	TargetRef     string    `json:"target_ref,omitempty"`
	SLADeadline   time.Time `json:"sla_deadline"`
	Priority      *int      `json:"priority,omitempty"`
	EstimatedCost float64   `json:"estimated_cost,omitempty"`
	MaxAttempts   int       `json:"max_attempts,omitempty"`
}

// DequeueRequest is the body of POST /api/v1/tasks/next. TenantID
// restricts the claim to one tenant; empty lets the fairness selector
// choose.
type DequeueRequest struct {
	TenantID string `json:"tenant_id,omitempty"`
}

// CompleteRequest is the body of POST /api/v1/tasks/{id}/succeed.
type CompleteRequest struct {
	ActualCost float64 `json:"actual_cost"`
}

// FailRequest is the body of POST /api/v1/tasks/{id}/fail.
type FailRequest struct {
	Error string `json:"error"`
}

// BlockRequest is the body of POST /api/v1/tasks/{id}/block.
type BlockRequest struct {
	Reason string `json:"reason"`
}
