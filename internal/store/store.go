package store

import (
	"context"
	"time"

	"github.com/me/slaq/pkg/model"
)

// Store defines the persistence layer for slaq tasks. It must support
// the conditional-update semantics ClaimTask needs: exactly one caller
// among concurrent contenders wins a given queued task.
type Store interface {
	// Task CRUD
	CreateTask(ctx context.Context, task *model.PipelineTask) error
	GetTask(ctx context.Context, id string) (*model.PipelineTask, error)
	ListTasks(ctx context.Context, opts model.ListOptions) ([]*model.PipelineTask, int, error)
	UpdateTask(ctx context.Context, task *model.PipelineTask) error

	// ClaimTask atomically transitions a task queued → running, setting
	// started_at and incrementing attempts, but only if the task is
	// still queued and the tenant stays within maxRunning running tasks
	// (maxRunning <= 0 means unlimited). Returns nil without error when the
	// claim is lost to a concurrent caller or the cap re-validation
	// fails.
	ClaimTask(ctx context.Context, taskID string, maxRunning int, now time.Time) (*model.PipelineTask, error)

	// Scheduling queries
	ListEligible(ctx context.Context, tenantID string, now time.Time, limit int) ([]*model.PipelineTask, error)
	TenantLoads(ctx context.Context, now time.Time) (map[string]int, error)
	CountRunning(ctx context.Context, tenantID string) (int, error)
	CountQueued(ctx context.Context, tenantID string) (int, error)
	CountCreatedSince(ctx context.Context, tenantID string, taskType model.TaskType, since time.Time) (int, error)
	CountByStatus(ctx context.Context, tenantID string) (map[model.TaskStatus]int, error)
	SumCostInFlight(ctx context.Context, tenantID string) (float64, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
