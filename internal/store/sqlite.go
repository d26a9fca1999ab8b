package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/slaq/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Every pooled connection to ":memory:" would otherwise open its own
	// empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

const taskColumns = `id, tenant_id, task_type, status, priority, sla_deadline,
	 attempts, max_attempts, last_error, blocked_reason,
	 estimated_cost, actual_cost, input_ref, target_ref,
	 not_before, created_at, started_at, completed_at`

// --- Task CRUD ---

func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.PipelineTask) error {
	s.logger.Debug("sql", "op", "insert", "table", "tasks", "id", task.ID)

	var notBefore *string
	if !task.NotBefore.IsZero() {
		v := task.NotBefore.Format(time.RFC3339Nano)
		notBefore = &v
	}
	startedAt, completedAt := formatOptional(task.StartedAt), formatOptional(task.CompletedAt)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.TenantID, string(task.TaskType), string(task.Status),
		task.Priority, task.SLADeadline.Format(time.RFC3339Nano),
		task.Attempts, task.MaxAttempts, task.LastError, task.BlockedReason,
		task.EstimatedCost, task.ActualCost, task.InputRef, task.TargetRef,
		notBefore, task.CreatedAt.Format(time.RFC3339Nano), startedAt, completedAt,
	)
	return err
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.PipelineTask, error) {
	s.logger.Debug("sql", "op", "select", "table", "tasks", "id", id)
	return s.scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
}

func (s *SQLiteStore) ListTasks(ctx context.Context, opts model.ListOptions) ([]*model.PipelineTask, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "tasks", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	// Build WHERE clause dynamically based on filters.
	var whereClauses []string
	var countArgs []any

	if opts.TenantID != "" {
		whereClauses = append(whereClauses, "tenant_id = ?")
		countArgs = append(countArgs, opts.TenantID)
	}
	if opts.Status != "" {
		whereClauses = append(whereClauses, "status = ?")
		countArgs = append(countArgs, opts.Status)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT ` + taskColumns + ` FROM tasks` + whereSQL +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tasks, err := s.scanTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, task *model.PipelineTask) error {
	s.logger.Debug("sql", "op", "update", "table", "tasks", "id", task.ID)

	var notBefore *string
	if !task.NotBefore.IsZero() {
		v := task.NotBefore.Format(time.RFC3339Nano)
		notBefore = &v
	}
	startedAt, completedAt := formatOptional(task.StartedAt), formatOptional(task.CompletedAt)

	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status=?, attempts=?, last_error=?, blocked_reason=?,
		 actual_cost=?, not_before=?, started_at=?, completed_at=? WHERE id=?`,
		string(task.Status), task.Attempts, task.LastError, task.BlockedReason,
		task.ActualCost, notBefore, startedAt, completedAt, task.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task %s: %w", task.ID, model.ErrTaskNotFound)
	}
	return nil
}

// --- Atomic claim ---

// ClaimTask implements the conditional update that guarantees at-most-one
// successful claim per task. The status guard on the UPDATE decides the
// race; the cap re-check runs inside the same transaction so a stale
// fairness read cannot push a tenant past its concurrency cap. The
// attempts guard keeps a claim from ever spending more than the task's
// budget, whatever path put the task back in queued. started_at is
// written on the first claim only and survives requeues.
func (s *SQLiteStore) ClaimTask(ctx context.Context, taskID string, maxRunning int, now time.Time) (*model.PipelineTask, error) {
	s.logger.Debug("sql", "op", "claim", "table", "tasks", "id", taskID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	nowStr := now.Format(time.RFC3339Nano)
	result, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status='running', started_at=COALESCE(started_at, ?), attempts=attempts+1
		 WHERE id=? AND status='queued' AND attempts < max_attempts`,
		nowStr, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("claim update: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		// Lost race, no longer queued, or attempt budget spent. Normal
		// outcome, caller retries selection.
		return nil, nil
	}

	task, err := s.scanTask(tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID))
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrTaskNotFound)
	}

	if maxRunning > 0 {
		var running int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tasks WHERE tenant_id=? AND status='running'`,
			task.TenantID,
		).Scan(&running); err != nil {
			return nil, fmt.Errorf("cap check: %w", err)
		}
		if running > maxRunning {
			// Tenant is over cap including this claim; roll back and let
			// the caller pick another tenant.
			return nil, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return task, nil
}

// --- Scheduling queries ---

// ListEligible returns a tenant's claimable tasks: queued and past any
// retry hold-off. Ordered by deadline so the comparator works on the
// most urgent slice even when truncated by limit.
func (s *SQLiteStore) ListEligible(ctx context.Context, tenantID string, now time.Time, limit int) ([]*model.PipelineTask, error) {
	s.logger.Debug("sql", "op", "list_eligible", "table", "tasks", "tenant_id", tenantID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE tenant_id = ? AND status = 'queued'
		   AND (not_before IS NULL OR not_before <= ?)
		 ORDER BY sla_deadline LIMIT ?`,
		tenantID, now.Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanTasks(rows)
}

// TenantLoads returns, for every tenant with at least one eligible
// queued task, the tenant's current count of running tasks.
func (s *SQLiteStore) TenantLoads(ctx context.Context, now time.Time) (map[string]int, error) {
	s.logger.Debug("sql", "op", "tenant_loads", "table", "tasks")

	rows, err := s.db.QueryContext(ctx,
		`SELECT t.tenant_id,
		        (SELECT COUNT(*) FROM tasks r WHERE r.tenant_id = t.tenant_id AND r.status = 'running')
		 FROM tasks t
		 WHERE t.status = 'queued' AND (t.not_before IS NULL OR t.not_before <= ?)
		 GROUP BY t.tenant_id`,
		now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loads := make(map[string]int)
	for rows.Next() {
		var tenant string
		var running int
		if err := rows.Scan(&tenant, &running); err != nil {
			return nil, err
		}
		loads[tenant] = running
	}
	return loads, rows.Err()
}

func (s *SQLiteStore) CountRunning(ctx context.Context, tenantID string) (int, error) {
	return s.countWhere(ctx, `tenant_id = ? AND status = 'running'`, tenantID)
}

func (s *SQLiteStore) CountQueued(ctx context.Context, tenantID string) (int, error) {
	return s.countWhere(ctx, `tenant_id = ? AND status = 'queued'`, tenantID)
}

func (s *SQLiteStore) CountCreatedSince(ctx context.Context, tenantID string, taskType model.TaskType, since time.Time) (int, error) {
	return s.countWhere(ctx, `tenant_id = ? AND task_type = ? AND created_at >= ?`,
		tenantID, string(taskType), since.Format(time.RFC3339Nano))
}

func (s *SQLiteStore) countWhere(ctx context.Context, where string, args ...any) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&n)
	return n, err
}

// CountByStatus returns task counts grouped by status, optionally
// scoped to one tenant.
func (s *SQLiteStore) CountByStatus(ctx context.Context, tenantID string) (map[model.TaskStatus]int, error) {
	s.logger.Debug("sql", "op", "count_by_status", "table", "tasks", "tenant_id", tenantID)

	query := `SELECT status, COUNT(*) FROM tasks`
	var args []any
	if tenantID != "" {
		query += ` WHERE tenant_id = ?`
		args = append(args, tenantID)
	}
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}

// SumCostInFlight returns the summed estimated cost of a tenant's
// queued and running tasks. Used by the budget admission policy.
func (s *SQLiteStore) SumCostInFlight(ctx context.Context, tenantID string) (float64, error) {
	var sum sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(estimated_cost) FROM tasks
		 WHERE tenant_id = ? AND status IN ('queued', 'running', 'blocked')`,
		tenantID,
	).Scan(&sum)
	if err != nil {
		return 0, err
	}
	return sum.Float64, nil
}

// --- scan helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanTask(row scanner) (*model.PipelineTask, error) {
	var task model.PipelineTask
	var taskType, status, slaDeadline, createdAt string
	var notBefore, startedAt, completedAt *string

	err := row.Scan(
		&task.ID, &task.TenantID, &taskType, &status, &task.Priority, &slaDeadline,
		&task.Attempts, &task.MaxAttempts, &task.LastError, &task.BlockedReason,
		&task.EstimatedCost, &task.ActualCost, &task.InputRef, &task.TargetRef,
		&notBefore, &createdAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	task.TaskType = model.TaskType(taskType)
	task.Status = model.TaskStatus(status)
	task.SLADeadline, _ = time.Parse(time.RFC3339Nano, slaDeadline)
	task.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if notBefore != nil {
		task.NotBefore, _ = time.Parse(time.RFC3339Nano, *notBefore)
	}
	task.StartedAt = parseOptional(startedAt)
	task.CompletedAt = parseOptional(completedAt)

	return &task, nil
}

func (s *SQLiteStore) scanTasks(rows *sql.Rows) ([]*model.PipelineTask, error) {
	var tasks []*model.PipelineTask
	for rows.Next() {
		task, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339Nano)
	return &v
}

func parseOptional(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, _ := time.Parse(time.RFC3339Nano, *s)
	return &t
}
