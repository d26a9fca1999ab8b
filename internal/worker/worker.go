// Package worker implements the polling work loop that claims tasks
// from a slaq server, hands them to a Runner, and reports the outcome.
// Retry and requeue decisions stay on the server; a worker only ever
// reports success or failure for the one attempt it ran.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/me/slaq/pkg/model"
)

// Runner executes one claimed task attempt. ActualCost is whatever
// cost accounting the runner can produce; zero is fine.
type Runner interface {
	Run(ctx context.Context, task *model.PipelineTask) (actualCost float64, err error)
}

// Worker is the core work loop that polls the server for tasks,
// executes them with the configured Runner, and reports results back.
type Worker struct {
	client *Client
	runner Runner
	poll   time.Duration
	logger *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	ServerURL string
	TenantID  string
	Command   []string
	Poll      time.Duration
}

// New creates a Worker from configuration.
func New(cfg Config, logger *slog.Logger) (*Worker, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("worker command is required")
	}
	if cfg.Poll == 0 {
		cfg.Poll = 2 * time.Second
	}

	return &Worker{
		client: NewClient(cfg.ServerURL, cfg.TenantID),
		runner: &CommandRunner{Command: cfg.Command},
		poll:   cfg.Poll,
		logger: logger.With("component", "worker"),
	}, nil
}

// Run starts the main work loop and blocks until the context is
// cancelled. Idle polls back off exponentially up to one minute and
// reset as soon as work appears.
func (w *Worker) Run(ctx context.Context) error {
	idle := backoff.NewExponentialBackOff()
	idle.InitialInterval = w.poll
	idle.MaxInterval = time.Minute
	idle.MaxElapsedTime = 0

	for {
		task, err := w.client.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("poll failed", "error", err)
		}

		if task != nil {
			idle.Reset()
			w.execute(ctx, task)
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(idle.NextBackOff()):
		}
	}
}

// execute runs one attempt and reports the outcome. Report errors are
// logged, not retried: the server treats a lost report as a stuck
// running task for operators to resolve.
func (w *Worker) execute(ctx context.Context, task *model.PipelineTask) {
	w.logger.Info("task received",
		"task_id", task.ID, "tenant_id", task.TenantID,
		"task_type", task.TaskType, "attempt", task.Attempts)

	cost, runErr := w.runner.Run(ctx, task)
	if runErr != nil {
		w.logger.Warn("task attempt failed", "task_id", task.ID, "error", runErr)
		if err := w.client.Fail(ctx, task.ID, runErr.Error()); err != nil {
			w.logger.Error("report failure", "task_id", task.ID, "error", err)
		}
		return
	}

	if err := w.client.Succeed(ctx, task.ID, cost); err != nil {
		w.logger.Error("report success", "task_id", task.ID, "error", err)
		return
	}
	w.logger.Info("task completed", "task_id", task.ID, "actual_cost", cost)
}

// CommandRunner executes tasks by invoking an external command with the
// task JSON on stdin. The command's stdout may optionally be a JSON
// object with an "actual_cost" field; anything else is ignored.
type CommandRunner struct {
	Command []string
}

func (r *CommandRunner) Run(ctx context.Context, task *model.PipelineTask) (float64, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return 0, fmt.Errorf("marshal task: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	cmd.Stdin = strings.NewReader(string(payload))

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, err
	}

	var result struct {
		ActualCost float64 `json:"actual_cost"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		return 0, nil
	}
	return result.ActualCost, nil
}
