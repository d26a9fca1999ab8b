package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/me/slaq/internal/audit"
	"github.com/me/slaq/internal/config"
	"github.com/me/slaq/pkg/model"
)

// recordingSink captures audit events for assertions.
type recordingSink struct {
	events []audit.Event
}

func (r *recordingSink) LogEvent(ctx context.Context, ev audit.Event) {
	r.events = append(r.events, ev)
}

func testRetryPolicy(cfg config.SchedulerConfig, sink audit.Sink) *RetryPolicy {
	return NewRetryPolicy(cfg, sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOnFailure_RequeuesWithHoldoff(t *testing.T) {
	cfg := config.DefaultSchedulerConfig()
	policy := testRetryPolicy(cfg, audit.Nop{})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	task := &model.PipelineTask{
		ID: "task_x", Status: model.StatusRunning,
		Attempts: 1, MaxAttempts: 3,
	}
	policy.OnFailure(context.Background(), task, "timeout", now)

	if task.Status != model.StatusQueued {
		t.Errorf("Status = %s, want queued", task.Status)
	}
	if task.LastError != "timeout" {
		t.Errorf("LastError = %q, want timeout", task.LastError)
	}
	if !task.NotBefore.After(now) {
		t.Errorf("NotBefore = %v, want after %v", task.NotBefore, now)
	}
	if task.CompletedAt != nil {
		t.Error("CompletedAt set on a retried task")
	}
}

func TestOnFailure_ExhaustedIsTerminal(t *testing.T) {
	cfg := config.DefaultSchedulerConfig()
	policy := testRetryPolicy(cfg, audit.Nop{})
	now := time.Now().UTC()

	task := &model.PipelineTask{
		ID: "task_x", Status: model.StatusRunning,
		Attempts: 3, MaxAttempts: 3,
	}
	policy.OnFailure(context.Background(), task, "boom", now)

	if task.Status != model.StatusFailed {
		t.Errorf("Status = %s, want failed", task.Status)
	}
	if task.CompletedAt == nil {
		t.Error("CompletedAt not set on terminal failure")
	}
}

func TestRequeueDelay_ExponentialAndCapped(t *testing.T) {
	cfg := config.DefaultSchedulerConfig()
	cfg.RetryBaseDelay = config.Duration(time.Second)
	cfg.RetryMaxDelay = config.Duration(4 * time.Second)
	policy := testRetryPolicy(cfg, audit.Nop{})

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 4 * time.Second}, // capped
	}
	for _, tt := range tests {
		if got := policy.requeueDelay(tt.attempts); got != tt.want {
			t.Errorf("requeueDelay(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestOnSuccess_Finalizes(t *testing.T) {
	cfg := config.DefaultSchedulerConfig()
	policy := testRetryPolicy(cfg, audit.Nop{})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-30 * time.Second)

	task := &model.PipelineTask{
		ID: "task_x", TaskType: model.TaskTypeCritique,
		Status: model.StatusRunning, StartedAt: &started,
	}
	policy.OnSuccess(context.Background(), task, 1.25, now)

	if task.Status != model.StatusSucceeded {
		t.Errorf("Status = %s, want succeeded", task.Status)
	}
	if task.ActualCost != 1.25 {
		t.Errorf("ActualCost = %v, want 1.25", task.ActualCost)
	}
	if task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", task.CompletedAt, now)
	}
}

func TestOnSuccess_SLABreachWarning(t *testing.T) {
	cfg := config.DefaultSchedulerConfig()
	cfg.MaxLatencyPerTaskType = map[model.TaskType]config.Duration{
		model.TaskTypeEvaluation: config.Duration(time.Minute),
	}
	sink := &recordingSink{}
	policy := testRetryPolicy(cfg, sink)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-5 * time.Minute) // well over the 1m target

	task := &model.PipelineTask{
		ID: "task_x", TenantID: "org_a", TaskType: model.TaskTypeEvaluation,
		Status: model.StatusRunning, StartedAt: &started,
	}
	policy.OnSuccess(context.Background(), task, 0, now)

	// The breach is a warning, not a failure.
	if task.Status != model.StatusSucceeded {
		t.Errorf("Status = %s, want succeeded despite breach", task.Status)
	}
	if len(sink.events) != 1 || sink.events[0].Type != audit.EventSLABreach {
		t.Fatalf("events = %+v, want one sla.breach_warning", sink.events)
	}
}

func TestOnSuccess_NoWarningWithinTarget(t *testing.T) {
	cfg := config.DefaultSchedulerConfig()
	cfg.MaxLatencyPerTaskType = map[model.TaskType]config.Duration{
		model.TaskTypeEvaluation: config.Duration(time.Hour),
	}
	sink := &recordingSink{}
	policy := testRetryPolicy(cfg, sink)

	now := time.Now().UTC()
	started := now.Add(-time.Second)
	task := &model.PipelineTask{
		ID: "task_x", TaskType: model.TaskTypeEvaluation,
		Status: model.StatusRunning, StartedAt: &started,
	}
	policy.OnSuccess(context.Background(), task, 0, now)

	if len(sink.events) != 0 {
		t.Errorf("events = %+v, want none", sink.events)
	}
}
