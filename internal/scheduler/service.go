// Package scheduler is the SLA-aware admission and scheduling core: it
// admits work under per-tenant budgets, orders pending work by SLA
// urgency, enforces per-tenant fairness, and manages retry, failure,
// and blocking transitions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/me/slaq/internal/admission"
	"github.com/me/slaq/internal/audit"
	"github.com/me/slaq/internal/clock"
	"github.com/me/slaq/internal/config"
	"github.com/me/slaq/internal/metrics"
	"github.com/me/slaq/internal/store"
	"github.com/me/slaq/pkg/model"
)

// claimBatch bounds how many candidates per tenant a single dequeue
// inspects. Candidates are deadline-ordered by the store, so the most
// urgent work is always in the batch.
const claimBatch = 32

// Service composes admission, fairness selection, SLA ordering, and
// retry into the scheduler façade. Multiple workers may call
// DequeueNext concurrently; correctness rests on the store's atomic
// claim, not on in-process locking.
type Service struct {
	store     store.Store
	admission admission.Policy
	retry     *RetryPolicy
	config    config.SchedulerConfig
	clock     clock.Clock
	audit     audit.Sink
	logger    *slog.Logger
}

// New creates a scheduler service. All collaborators are injected; the
// configuration is an explicit value, so tests can run independently
// configured instances side by side.
func New(st store.Store, pol admission.Policy, cfg config.SchedulerConfig, clk clock.Clock, sink audit.Sink, logger *slog.Logger) *Service {
	return &Service{
		store:     st,
		admission: pol,
		retry:     NewRetryPolicy(cfg, sink, logger),
		config:    cfg,
		clock:     clk,
		audit:     sink,
		logger:    logger.With("component", "scheduler"),
	}
}

// Enqueue validates and admits a new task. On rejection nothing is
// persisted and the admission error is returned; on success the task is
// created in queued status. Both outcomes emit an audit event.
func (s *Service) Enqueue(ctx context.Context, req model.EnqueueRequest) (*model.PipelineTask, error) {
	if err := validateEnqueue(req); err != nil {
		return nil, err
	}
	now := s.clock.Now()

	priority := s.config.DefaultPriority(req.TaskType)
	if req.Priority != nil {
		// Caller-supplied priority is authoritative; the type default
		// applies only when the request omits it.
		priority = *req.Priority
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.config.MaxAttempts
	}

	task := &model.PipelineTask{
		ID:            "task_" + uuid.New().String(),
		TenantID:      req.TenantID,
		TaskType:      req.TaskType,
		Status:        model.StatusQueued,
		Priority:      priority,
		SLADeadline:   req.SLADeadline,
		MaxAttempts:   maxAttempts,
		EstimatedCost: req.EstimatedCost,
		InputRef:      req.InputRef,
		TargetRef:     req.TargetRef,
		CreatedAt:     now,
	}

	if err := s.admission.Admit(ctx, task, now); err != nil {
		metrics.TasksRejected.WithLabelValues(task.TenantID, rejectReason(err)).Inc()
		s.audit.LogEvent(ctx, audit.Event{
			Type:     audit.EventEnqueue,
			TenantID: task.TenantID,
			Success:  false,
			Details:  map[string]any{"task_type": string(task.TaskType), "reason": err.Error()},
			At:       now,
		})
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	metrics.TasksEnqueued.WithLabelValues(task.TenantID, string(task.TaskType)).Inc()
	s.audit.LogEvent(ctx, audit.Event{
		Type:       audit.EventEnqueue,
		TenantID:   task.TenantID,
		ResourceID: task.ID,
		Success:    true,
		Details:    map[string]any{"task_type": string(task.TaskType)},
		At:         now,
	})
	s.logger.Info("task enqueued",
		"task_id", task.ID, "tenant_id", task.TenantID,
		"task_type", task.TaskType, "priority", task.Priority,
		"sla_deadline", task.SLADeadline)
	return task, nil
}

// DequeueNext claims the most urgent eligible task for the least-loaded
// under-cap tenant (or, when tenantID is set, for that tenant alone).
// Returns nil without error when no work is claimable, a normal
// outcome; callers back off and poll again. Never blocks waiting for
// work.
func (s *Service) DequeueNext(ctx context.Context, tenantID string) (*model.PipelineTask, error) {
	now := s.clock.Now()

	var tenants []string
	if tenantID != "" {
		running, err := s.store.CountRunning(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("dequeue: %w", err)
		}
		if running >= s.config.ConcurrencyCap(tenantID) {
			return nil, nil
		}
		tenants = []string{tenantID}
	} else {
		loads, err := s.store.TenantLoads(ctx, now)
		if err != nil {
			return nil, fmt.Errorf("dequeue: %w", err)
		}
		tenants = OrderTenants(loads, s.config)
	}

	for _, tenant := range tenants {
		candidates, err := s.store.ListEligible(ctx, tenant, now, claimBatch)
		if err != nil {
			return nil, fmt.Errorf("dequeue: %w", err)
		}
		SortByUrgency(candidates, now)

		for _, candidate := range candidates {
			claimed, err := s.store.ClaimTask(ctx, candidate.ID, s.config.ConcurrencyCap(tenant), now)
			if err != nil {
				return nil, fmt.Errorf("dequeue: %w", err)
			}
			if claimed == nil {
				// Lost the race for this candidate; try the next.
				continue
			}

			metrics.TasksRunning.Inc()
			metrics.QueueWait.Observe(now.Sub(claimed.CreatedAt).Seconds())
			s.audit.LogEvent(ctx, audit.Event{
				Type:       audit.EventDequeue,
				TenantID:   claimed.TenantID,
				ResourceID: claimed.ID,
				Success:    true,
				Details:    map[string]any{"attempts": claimed.Attempts},
				At:         now,
			})
			s.logger.Debug("task claimed",
				"task_id", claimed.ID, "tenant_id", claimed.TenantID,
				"attempts", claimed.Attempts, "breached", claimed.Breached(now))
			return claimed, nil
		}
	}
	return nil, nil
}

// MarkSucceeded finalizes a running task. Calling it on a task in any
// other status is InvalidTransition, so duplicate completion signals
// surface instead of silently mutating terminal state.
func (s *Service) MarkSucceeded(ctx context.Context, taskID string, actualCost float64) (*model.PipelineTask, error) {
	task, err := s.runningTask(ctx, taskID, model.StatusSucceeded)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	s.retry.OnSuccess(ctx, task, actualCost, now)
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("mark succeeded: %w", err)
	}

	metrics.TasksRunning.Dec()
	s.audit.LogEvent(ctx, audit.Event{
		Type:       audit.EventSucceeded,
		TenantID:   task.TenantID,
		ResourceID: task.ID,
		Success:    true,
		Details:    map[string]any{"actual_cost": actualCost},
		At:         now,
	})
	s.logger.Info("task succeeded", "task_id", task.ID, "tenant_id", task.TenantID, "actual_cost", actualCost)
	return task, nil
}

// MarkFailed reports an execution failure on a running task. The retry
// policy decides requeue-with-backoff versus terminal failure; callers
// never re-submit the task themselves.
func (s *Service) MarkFailed(ctx context.Context, taskID string, errMsg string) (*model.PipelineTask, error) {
	task, err := s.runningTask(ctx, taskID, model.StatusFailed)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	s.retry.OnFailure(ctx, task, errMsg, now)
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}

	metrics.TasksRunning.Dec()
	s.audit.LogEvent(ctx, audit.Event{
		Type:       audit.EventFailed,
		TenantID:   task.TenantID,
		ResourceID: task.ID,
		Success:    true,
		Details:    map[string]any{"error": errMsg, "status": string(task.Status)},
		At:         now,
	})
	return task, nil
}

// MarkBlocked parks a queued or running task. A blocked task is
// invisible to DequeueNext regardless of its deadline until Unblock.
func (s *Service) MarkBlocked(ctx context.Context, taskID string, reason string) (*model.PipelineTask, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("mark blocked: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrTaskNotFound)
	}
	if !task.Status.CanTransitionTo(model.StatusBlocked) {
		return nil, &model.InvalidTransitionError{TaskID: taskID, From: task.Status, To: model.StatusBlocked}
	}

	wasRunning := task.Status == model.StatusRunning
	task.Status = model.StatusBlocked
	task.BlockedReason = reason
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("mark blocked: %w", err)
	}
	if wasRunning {
		metrics.TasksRunning.Dec()
	}

	s.audit.LogEvent(ctx, audit.Event{
		Type:       audit.EventBlocked,
		TenantID:   task.TenantID,
		ResourceID: task.ID,
		Success:    true,
		Details:    map[string]any{"reason": reason},
		At:         s.clock.Now(),
	})
	s.logger.Info("task blocked", "task_id", task.ID, "reason", reason)
	return task, nil
}

// Unblock releases a blocked task. A task with attempt budget left
// returns to the dequeue pool; one whose budget was already spent when
// it was blocked goes terminal instead, so a claim can never push
// attempts past max_attempts.
func (s *Service) Unblock(ctx context.Context, taskID string) (*model.PipelineTask, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("unblock: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrTaskNotFound)
	}
	if task.Status != model.StatusBlocked {
		return nil, &model.InvalidTransitionError{TaskID: taskID, From: task.Status, To: model.StatusQueued}
	}
	now := s.clock.Now()

	task.BlockedReason = ""
	if task.Attempts >= task.MaxAttempts {
		task.Status = model.StatusFailed
		task.CompletedAt = &now
		s.logger.Warn("unblocked task had no attempts left, failing",
			"task_id", task.ID, "attempts", task.Attempts, "max_attempts", task.MaxAttempts)
	} else {
		task.Status = model.StatusQueued
	}
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("unblock: %w", err)
	}

	s.audit.LogEvent(ctx, audit.Event{
		Type:       audit.EventUnblocked,
		TenantID:   task.TenantID,
		ResourceID: task.ID,
		Success:    true,
		Details:    map[string]any{"status": string(task.Status)},
		At:         now,
	})
	s.logger.Info("task unblocked", "task_id", task.ID, "status", task.Status)
	return task, nil
}

// QueueStats returns aggregate counts by status, optionally scoped to
// one tenant. Read-only.
func (s *Service) QueueStats(ctx context.Context, tenantID string) (*model.QueueStats, error) {
	counts, err := s.store.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	for _, status := range model.AllStatuses {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return &model.QueueStats{
		TenantID:     tenantID,
		StatusCounts: counts,
		Timestamp:    s.clock.Now(),
	}, nil
}

// GetTask fetches a task by id.
func (s *Service) GetTask(ctx context.Context, taskID string) (*model.PipelineTask, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrTaskNotFound)
	}
	return task, nil
}

// ListTasks lists tasks with filters and pagination.
func (s *Service) ListTasks(ctx context.Context, opts model.ListOptions) ([]*model.PipelineTask, int, error) {
	return s.store.ListTasks(ctx, opts)
}

// runningTask loads a task and asserts it is currently running.
func (s *Service) runningTask(ctx context.Context, taskID string, to model.TaskStatus) (*model.PipelineTask, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrTaskNotFound)
	}
	if task.Status != model.StatusRunning {
		return nil, &model.InvalidTransitionError{TaskID: taskID, From: task.Status, To: to}
	}
	return task, nil
}

func validateEnqueue(req model.EnqueueRequest) error {
	if req.TenantID == "" {
		return model.NewValidationError("tenant_id is required")
	}
	if req.TaskType == "" {
		return model.NewValidationError("task_type is required")
	}
	if req.InputRef == "" {
		return model.NewValidationError("input_ref is required")
	}
	if req.SLADeadline.IsZero() {
		return model.NewValidationError("sla_deadline is required")
	}
	return nil
}

func rejectReason(err error) string {
	switch model.APIErrorFor(err).Code {
	case model.ErrCodeRateLimitExceeded:
		return "rate_limit"
	case model.ErrCodeQueueOverflow:
		return "queue_overflow"
	default:
		return "other"
	}
}
