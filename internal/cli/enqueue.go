package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/slaq/pkg/model"
)

func newEnqueueCmd() *cobra.Command {
	var (
		tenantID      string
		taskType      string
		inputRef      string
		targetRef     string
		deadline      string
		deadlineIn    time.Duration
		priority      int
		estimatedCost float64
		maxAttempts   int
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a pipeline task",
		Long:  "Submit a new task for scheduling. The SLA deadline is given either as an absolute RFC3339 time (--deadline) or relative to now (--deadline-in).",
		RunE: func(cmd *cobra.Command, args []string) error {
			var slaDeadline time.Time
			switch {
			case deadline != "":
				t, err := time.Parse(time.RFC3339, deadline)
				if err != nil {
					return fmt.Errorf("parse --deadline: %w", err)
				}
				slaDeadline = t
			case deadlineIn > 0:
				slaDeadline = time.Now().UTC().Add(deadlineIn)
			default:
				return fmt.Errorf("either --deadline or --deadline-in is required")
			}

			req := model.EnqueueRequest{
				TenantID:      tenantID,
				TaskType:      model.TaskType(taskType),
				InputRef:      inputRef,
				TargetRef:     targetRef,
				SLADeadline:   slaDeadline,
				EstimatedCost: estimatedCost,
				MaxAttempts:   maxAttempts,
			}
			if cmd.Flags().Changed("priority") {
				req.Priority = &priority
			}

			resp, err := client.Post("/api/v1/tasks", req)
			if err != nil {
				return fmt.Errorf("enqueue: %w", err)
			}

			var task model.PipelineTask
			if err := json.Unmarshal(resp.Data, &task); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Printf("Task enqueued: %s (priority %d, deadline %s)\n",
				task.ID, task.Priority, task.SLADeadline.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().StringVar(&taskType, "type", "", "Task type: consolidation, critique, or evaluation (required)")
	cmd.Flags().StringVar(&inputRef, "input", "", "Input reference (required)")
	cmd.Flags().StringVar(&targetRef, "target", "", "Target reference")
	cmd.Flags().StringVar(&deadline, "deadline", "", "SLA deadline, RFC3339 (e.g. 2026-09-01T12:00:00Z)")
	cmd.Flags().DurationVar(&deadlineIn, "deadline-in", 0, "SLA deadline relative to now (e.g. 30m)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Priority; lower runs first (defaults per task type)")
	cmd.Flags().Float64Var(&estimatedCost, "estimated-cost", 0, "Estimated cost units")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Attempt budget (defaults from server config)")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("input")

	return cmd
}
