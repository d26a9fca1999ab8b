package scheduler

import (
	"sort"

	"github.com/me/slaq/internal/config"
)

// OrderTenants produces the tenant service order from a load snapshot:
// tenants with eligible queued work, ascending by running-task load,
// with tenants at or over their concurrency cap dropped. Tenant id
// breaks load ties so the order is deterministic.
//
// The snapshot may be stale by claim time; that is tolerated because the
// store's atomic claim re-validates the cap, so a stale pick simply
// fails its claim and the worker moves on.
func OrderTenants(loads map[string]int, cfg config.SchedulerConfig) []string {
	tenants := make([]string, 0, len(loads))
	for tenant, load := range loads {
		if load >= cfg.ConcurrencyCap(tenant) {
			continue
		}
		tenants = append(tenants, tenant)
	}
	sort.Slice(tenants, func(i, j int) bool {
		if loads[tenants[i]] != loads[tenants[j]] {
			return loads[tenants[i]] < loads[tenants[j]]
		}
		return tenants[i] < tenants[j]
	})
	return tenants
}
