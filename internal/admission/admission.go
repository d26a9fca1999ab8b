// Package admission decides whether new work may enter the queue,
// independent of how queued work is ordered.
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/slaq/internal/config"
	"github.com/me/slaq/internal/store"
	"github.com/me/slaq/pkg/model"
)

// Policy accepts or rejects a task at enqueue time. Implementations are
// injected into the scheduler so deployments can swap in stricter
// controllers by configuration.
type Policy interface {
	// Admit returns nil to accept, or ErrRateLimitExceeded /
	// ErrQueueOverflow (possibly wrapped) to reject. Rejection performs
	// no mutation.
	Admit(ctx context.Context, task *model.PipelineTask, now time.Time) error
}

// rateWindow is the trailing window for rate-limit accounting.
const rateWindow = time.Minute

// Gate is the standard admission policy: per-task-type rate limiting
// over a trailing one-minute window, plus a per-tenant queue depth cap.
// Both checks fail closed.
type Gate struct {
	store  store.Store
	config config.SchedulerConfig
	logger *slog.Logger
}

// NewGate creates the standard admission gate.
func NewGate(st store.Store, cfg config.SchedulerConfig, logger *slog.Logger) *Gate {
	return &Gate{
		store:  st,
		config: cfg,
		logger: logger.With("component", "admission"),
	}
}

func (g *Gate) Admit(ctx context.Context, task *model.PipelineTask, now time.Time) error {
	if err := g.checkRateLimit(ctx, task, now); err != nil {
		return err
	}
	return g.checkQueueDepth(ctx, task)
}

// checkRateLimit counts tasks of this type created by the tenant within
// the trailing window against the configured per-minute throughput.
func (g *Gate) checkRateLimit(ctx context.Context, task *model.PipelineTask, now time.Time) error {
	limit := g.config.RateLimit(task.TaskType)
	if limit <= 0 {
		return nil
	}
	recent, err := g.store.CountCreatedSince(ctx, task.TenantID, task.TaskType, now.Add(-rateWindow))
	if err != nil {
		return fmt.Errorf("rate limit count: %w", err)
	}
	if recent >= limit {
		g.logger.Debug("rate limit hit", "tenant_id", task.TenantID, "task_type", task.TaskType, "recent", recent, "limit", limit)
		return fmt.Errorf("tenant %s type %s: %d in window (limit %d): %w",
			task.TenantID, task.TaskType, recent, limit, model.ErrRateLimitExceeded)
	}
	return nil
}

// checkQueueDepth bounds the tenant's queued backlog. Independent of the
// rate limit: it protects the store from unbounded growth even when the
// rate limit alone would admit.
func (g *Gate) checkQueueDepth(ctx context.Context, task *model.PipelineTask) error {
	maxDepth := g.config.MaxQueueDepthPerTenant
	if maxDepth <= 0 {
		return nil
	}
	depth, err := g.store.CountQueued(ctx, task.TenantID)
	if err != nil {
		return fmt.Errorf("queue depth count: %w", err)
	}
	if depth >= maxDepth {
		g.logger.Debug("queue depth hit", "tenant_id", task.TenantID, "depth", depth, "max", maxDepth)
		return fmt.Errorf("tenant %s: %d queued (max %d): %w",
			task.TenantID, depth, maxDepth, model.ErrQueueOverflow)
	}
	return nil
}

// BudgetGate is the stricter policy: everything Gate checks, plus a
// bound on the tenant's total in-flight estimated cost. Selected with
// admission_policy: budget.
type BudgetGate struct {
	*Gate
	budget float64
}

// NewBudgetGate wraps the standard gate with a tenant cost budget.
func NewBudgetGate(st store.Store, cfg config.SchedulerConfig, logger *slog.Logger) *BudgetGate {
	return &BudgetGate{
		Gate:   NewGate(st, cfg, logger),
		budget: cfg.TenantCostBudget,
	}
}

func (g *BudgetGate) Admit(ctx context.Context, task *model.PipelineTask, now time.Time) error {
	if err := g.Gate.Admit(ctx, task, now); err != nil {
		return err
	}
	if g.budget <= 0 {
		return nil
	}
	inFlight, err := g.store.SumCostInFlight(ctx, task.TenantID)
	if err != nil {
		return fmt.Errorf("cost budget sum: %w", err)
	}
	if inFlight+task.EstimatedCost > g.budget {
		g.logger.Debug("cost budget hit", "tenant_id", task.TenantID, "in_flight", inFlight, "budget", g.budget)
		return fmt.Errorf("tenant %s: in-flight cost %.2f + %.2f exceeds budget %.2f: %w",
			task.TenantID, inFlight, task.EstimatedCost, g.budget, model.ErrQueueOverflow)
	}
	return nil
}

// ForConfig returns the policy selected by cfg.AdmissionPolicy.
func ForConfig(st store.Store, cfg config.SchedulerConfig, logger *slog.Logger) Policy {
	switch cfg.AdmissionPolicy {
	case "budget":
		return NewBudgetGate(st, cfg, logger)
	default:
		return NewGate(st, cfg, logger)
	}
}
