package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/me/slaq/pkg/model"
)

func newStatsCmd() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/stats"
			if tenantID != "" {
				path += "?tenant_id=" + url.QueryEscape(tenantID)
			}
			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			var stats model.QueueStats
			if err := json.Unmarshal(resp.Data, &stats); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if stats.TenantID != "" {
				fmt.Printf("Tenant: %s\n", stats.TenantID)
			}
			for _, status := range model.AllStatuses {
				fmt.Printf("%-10s  %d\n", status, stats.StatusCounts[status])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Scope stats to one tenant")
	return cmd
}
