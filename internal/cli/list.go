package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/slaq/pkg/model"
)

func newListCmd() *cobra.Command {
	var (
		tenantID string
		status   string
		limit    int
		offset   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if tenantID != "" {
				q.Set("tenant_id", tenantID)
			}
			if status != "" {
				q.Set("status", status)
			}
			q.Set("limit", fmt.Sprint(limit))
			q.Set("offset", fmt.Sprint(offset))

			resp, err := client.Get("/api/v1/tasks?" + q.Encode())
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}

			var tasks []model.PipelineTask
			if err := json.Unmarshal(resp.Data, &tasks); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(tasks) == 0 {
				fmt.Println("No tasks found.")
				return nil
			}

			now := time.Now().UTC()
			fmt.Printf("%-42s  %-12s  %-10s  %-14s  %-8s  %s\n", "ID", "TENANT", "STATUS", "TYPE", "PRIO", "SLA REMAINING")
			fmt.Printf("%-42s  %-12s  %-10s  %-14s  %-8s  %s\n", "----", "------", "------", "----", "----", "-------------")
			for _, task := range tasks {
				remaining := task.Remaining(now).Round(time.Second).String()
				if task.Breached(now) {
					remaining += " (BREACHED)"
				}
				fmt.Printf("%-42s  %-12s  %-10s  %-14s  %-8d  %s\n",
					task.ID, task.TenantID, task.Status, task.TaskType, task.Priority, remaining)
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Printf("\n(%d of %d shown)\n", len(tasks), resp.Pagination.Total)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Filter by tenant")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (queued, running, succeeded, failed, blocked)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum tasks to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset for pagination")

	return cmd
}
