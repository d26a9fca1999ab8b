package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/me/slaq/internal/audit"
	"github.com/me/slaq/internal/config"
	"github.com/me/slaq/internal/metrics"
	"github.com/me/slaq/pkg/model"
)

// RetryPolicy decides the fate of a task on completion. Attempts are
// incremented at claim time, so OnFailure only compares against the
// budget, never increments.
type RetryPolicy struct {
	config config.SchedulerConfig
	audit  audit.Sink
	logger *slog.Logger
}

// NewRetryPolicy creates a retry policy.
func NewRetryPolicy(cfg config.SchedulerConfig, sink audit.Sink, logger *slog.Logger) *RetryPolicy {
	return &RetryPolicy{
		config: cfg,
		audit:  sink,
		logger: logger.With("component", "retry"),
	}
}

// OnFailure records the error and either requeues the task with a
// backoff hold-off (attempts remain) or moves it to terminal failed
// (budget exhausted, a normal outcome surfaced through status rather
// than an error).
func (p *RetryPolicy) OnFailure(ctx context.Context, task *model.PipelineTask, errMsg string, now time.Time) {
	task.LastError = errMsg

	if task.Attempts < task.MaxAttempts {
		task.Status = model.StatusQueued
		task.NotBefore = now.Add(p.requeueDelay(task.Attempts))
		metrics.TasksFailed.WithLabelValues(string(task.TaskType), "retried").Inc()
		p.logger.Info("task requeued",
			"task_id", task.ID, "tenant_id", task.TenantID,
			"attempts", task.Attempts, "max_attempts", task.MaxAttempts,
			"not_before", task.NotBefore)
		return
	}

	task.Status = model.StatusFailed
	completedAt := now
	task.CompletedAt = &completedAt
	metrics.TasksFailed.WithLabelValues(string(task.TaskType), "exhausted").Inc()
	p.logger.Warn("task failed permanently",
		"task_id", task.ID, "tenant_id", task.TenantID,
		"attempts", task.Attempts, "error", errMsg)
}

// OnSuccess finalizes a completed task and emits a non-fatal SLA breach
// warning when the run exceeded the task type's latency target.
func (p *RetryPolicy) OnSuccess(ctx context.Context, task *model.PipelineTask, actualCost float64, now time.Time) {
	task.Status = model.StatusSucceeded
	completedAt := now
	task.CompletedAt = &completedAt
	task.ActualCost = actualCost

	metrics.TasksCompleted.WithLabelValues(string(task.TaskType)).Inc()
	if task.StartedAt != nil {
		elapsed := now.Sub(*task.StartedAt)
		metrics.RunLatency.WithLabelValues(string(task.TaskType)).Observe(elapsed.Seconds())

		if target := p.config.MaxLatency(task.TaskType); target > 0 && elapsed > target {
			metrics.SLABreaches.WithLabelValues(task.TenantID, string(task.TaskType)).Inc()
			p.audit.LogEvent(ctx, audit.Event{
				Type:       audit.EventSLABreach,
				TenantID:   task.TenantID,
				ResourceID: task.ID,
				Success:    true,
				Details: map[string]any{
					"task_type": string(task.TaskType),
					"elapsed":   elapsed.String(),
					"target":    target.String(),
				},
				At: now,
			})
		}
	}
}

// requeueDelay computes the hold-off before a retried task becomes
// claimable again: exponential from the configured base, capped.
func (p *RetryPolicy) requeueDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.config.RetryBaseDelay.Std()
	b.MaxInterval = p.config.RetryMaxDelay.Std()
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
