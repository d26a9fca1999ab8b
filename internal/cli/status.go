package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/slaq/pkg/model"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show task detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/tasks/" + args[0])
			if err != nil {
				return fmt.Errorf("get task: %w", err)
			}

			var task model.PipelineTask
			if err := json.Unmarshal(resp.Data, &task); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			now := time.Now().UTC()
			fmt.Printf("Task:          %s\n", task.ID)
			fmt.Printf("Tenant:        %s\n", task.TenantID)
			fmt.Printf("Type:          %s\n", task.TaskType)
			fmt.Printf("Status:        %s\n", task.Status)
			fmt.Printf("Priority:      %d\n", task.Priority)
			fmt.Printf("SLA deadline:  %s (remaining %s)\n",
				task.SLADeadline.Format(time.RFC3339), task.Remaining(now).Round(time.Second))
			fmt.Printf("Attempts:      %d/%d\n", task.Attempts, task.MaxAttempts)
			if task.LastError != "" {
				fmt.Printf("Last error:    %s\n", task.LastError)
			}
			if task.BlockedReason != "" {
				fmt.Printf("Blocked:       %s\n", task.BlockedReason)
			}
			if !task.NotBefore.IsZero() {
				fmt.Printf("Held until:    %s\n", task.NotBefore.Format(time.RFC3339))
			}
			if task.StartedAt != nil {
				fmt.Printf("Started:       %s\n", task.StartedAt.Format(time.RFC3339))
			}
			if task.CompletedAt != nil {
				fmt.Printf("Completed:     %s (cost %.2f)\n", task.CompletedAt.Format(time.RFC3339), task.ActualCost)
			}
			return nil
		},
	}
}
