package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all slaq tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id             TEXT PRIMARY KEY,
		tenant_id      TEXT NOT NULL,
		task_type      TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'queued',
		priority       INTEGER NOT NULL DEFAULT 0,
		sla_deadline   TEXT NOT NULL,
		attempts       INTEGER NOT NULL DEFAULT 0,
		max_attempts   INTEGER NOT NULL DEFAULT 3,
		last_error     TEXT NOT NULL DEFAULT '',
		blocked_reason TEXT NOT NULL DEFAULT '',
		estimated_cost REAL NOT NULL DEFAULT 0,
		actual_cost    REAL NOT NULL DEFAULT 0,
		input_ref      TEXT NOT NULL DEFAULT '',
		target_ref     TEXT NOT NULL DEFAULT '',
		not_before     TEXT,
		created_at     TEXT NOT NULL,
		started_at     TEXT,
		completed_at   TEXT
	)`,

	// Claim path: eligible-candidate scan per tenant.
	`CREATE INDEX IF NOT EXISTS idx_tasks_tenant_status ON tasks(tenant_id, status)`,
	// Stats and fairness load counts.
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	// Rate-limit trailing-window count (tenant + type + created_at).
	`CREATE INDEX IF NOT EXISTS idx_tasks_tenant_type_created ON tasks(tenant_id, task_type, created_at)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
