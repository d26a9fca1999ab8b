// Package audit emits scheduler audit events to an external sink.
// Delivery is fire-and-forget: a sink must never return an error to the
// scheduler, so observability cannot break admission or execution.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event types recorded by the scheduler.
const (
	EventEnqueue     = "task.enqueue"
	EventDequeue     = "task.dequeue"
	EventSucceeded   = "task.succeeded"
	EventFailed      = "task.failed"
	EventBlocked     = "task.blocked"
	EventUnblocked   = "task.unblocked"
	EventSLABreach   = "sla.breach_warning"
)

// Event is a single audit record.
type Event struct {
	Type       string
	TenantID   string
	ResourceID string
	Success    bool
	Details    map[string]any
	At         time.Time
}

// Sink receives audit events. Implementations swallow their own
// failures; LogEvent has no error return by contract.
type Sink interface {
	LogEvent(ctx context.Context, ev Event)
}

// SlogSink writes audit events to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a Sink backed by the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger.With("component", "audit")}
}

func (s *SlogSink) LogEvent(ctx context.Context, ev Event) {
	attrs := []any{
		"event", ev.Type,
		"tenant_id", ev.TenantID,
		"resource_id", ev.ResourceID,
		"success", ev.Success,
	}
	for k, v := range ev.Details {
		attrs = append(attrs, k, v)
	}
	if ev.Success {
		s.logger.InfoContext(ctx, "audit", attrs...)
	} else {
		s.logger.WarnContext(ctx, "audit", attrs...)
	}
}

// Nop discards all events. Used in tests.
type Nop struct{}

func (Nop) LogEvent(ctx context.Context, ev Event) {}
