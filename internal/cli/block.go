package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/slaq/pkg/model"
)

func newBlockCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "block <task-id>",
		Short: "Park a task on an external dependency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/tasks/"+args[0]+"/block", model.BlockRequest{Reason: reason})
			if err != nil {
				return fmt.Errorf("block: %w", err)
			}

			var task model.PipelineTask
			if err := json.Unmarshal(resp.Data, &task); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Printf("Task %s blocked (%s)\n", task.ID, task.BlockedReason)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the task is blocked (required)")
	cmd.MarkFlagRequired("reason")
	return cmd
}

func newUnblockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <task-id>",
		Short: "Return a blocked task to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/tasks/"+args[0]+"/unblock", nil)
			if err != nil {
				return fmt.Errorf("unblock: %w", err)
			}

			var task model.PipelineTask
			if err := json.Unmarshal(resp.Data, &task); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Printf("Task %s back in queue\n", task.ID)
			return nil
		},
	}
}
