package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/me/slaq/internal/admission"
	"github.com/me/slaq/internal/audit"
	"github.com/me/slaq/internal/clock"
	"github.com/me/slaq/internal/config"
	"github.com/me/slaq/internal/scheduler"
	"github.com/me/slaq/internal/store"
	"github.com/me/slaq/pkg/model"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.DefaultServerConfig()

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := scheduler.New(st,
		admission.ForConfig(st, cfg.Scheduler, logger),
		cfg.Scheduler,
		clock.Real{},
		audit.Nop{},
		logger)
	return New(cfg, svc, logger)
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func do(t *testing.T, srv *Server, method, path, body string) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: invalid JSON: %v, body=%s", method, path, err, w.Body.String())
		}
	}
	return w.Code, env
}

func enqueueBody(tenant string) string {
	deadline := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	return fmt.Sprintf(`{"tenant_id":%q,"task_type":"critique","input_ref":"ref://in","sla_deadline":%q}`, tenant, deadline)
}

func mustEnqueue(t *testing.T, srv *Server, tenant string) model.PipelineTask {
	t.Helper()
	code, env := do(t, srv, "POST", "/api/v1/tasks", enqueueBody(tenant))
	if code != http.StatusCreated {
		t.Fatalf("POST /tasks: status=%d, error=%+v", code, env.Error)
	}
	var task model.PipelineTask
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return task
}

func TestDiscovery(t *testing.T) {
	srv := testServer(t)
	code, env := do(t, srv, "GET", "/api/v1/", "")
	if code != http.StatusOK || env.Status != "ok" {
		t.Fatalf("status=%d env.Status=%q", code, env.Status)
	}
	if env.RequestID == "" {
		t.Error("request_id is empty")
	}

	var data discoveryResponse
	json.Unmarshal(env.Data, &data)
	if data.Name != "slaq API" {
		t.Errorf("name = %q, want slaq API", data.Name)
	}
	if len(data.Endpoints) < 8 {
		t.Errorf("endpoints count = %d, want >= 8", len(data.Endpoints))
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	code, env := do(t, srv, "GET", "/api/v1/health", "")
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}

	var data healthResponse
	json.Unmarshal(env.Data, &data)
	if data.Status != "healthy" {
		t.Errorf("health status = %q, want healthy", data.Status)
	}
	if data.Store != "ok" {
		t.Errorf("store = %q, want ok", data.Store)
	}
}

func TestEnqueueAndGet(t *testing.T) {
	srv := testServer(t)
	task := mustEnqueue(t, srv, "org_a")

	if !strings.HasPrefix(task.ID, "task_") {
		t.Errorf("id = %q, want task_ prefix", task.ID)
	}
	if task.Status != model.StatusQueued {
		t.Errorf("status = %s, want queued", task.Status)
	}

	code, env := do(t, srv, "GET", "/api/v1/tasks/"+task.ID, "")
	if code != http.StatusOK {
		t.Fatalf("GET task: status=%d", code)
	}
	var got model.PipelineTask
	json.Unmarshal(env.Data, &got)
	if got.ID != task.ID {
		t.Errorf("got %s, want %s", got.ID, task.ID)
	}
}

func TestEnqueue_Invalid(t *testing.T) {
	srv := testServer(t)

	code, env := do(t, srv, "POST", "/api/v1/tasks", `{"task_type":"critique"}`)
	if code != http.StatusBadRequest {
		t.Errorf("status=%d, want 400", code)
	}
	if env.Error == nil || env.Error.Code != model.ErrCodeValidation {
		t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
	}

	code, _ = do(t, srv, "POST", "/api/v1/tasks", "not json")
	if code != http.StatusBadRequest {
		t.Errorf("invalid JSON: status=%d, want 400", code)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	srv := testServer(t)
	code, env := do(t, srv, "GET", "/api/v1/tasks/task_nope", "")
	if code != http.StatusNotFound {
		t.Errorf("status=%d, want 404", code)
	}
	if env.Error == nil || env.Error.Code != model.ErrCodeNotFound {
		t.Errorf("error = %+v, want NOT_FOUND", env.Error)
	}
}

func TestDequeueNext(t *testing.T) {
	srv := testServer(t)

	// Empty queue: 204, no body.
	code, _ := do(t, srv, "POST", "/api/v1/tasks/next", "")
	if code != http.StatusNoContent {
		t.Fatalf("empty queue: status=%d, want 204", code)
	}

	task := mustEnqueue(t, srv, "org_a")
	code, env := do(t, srv, "POST", "/api/v1/tasks/next", "")
	if code != http.StatusOK {
		t.Fatalf("status=%d, want 200", code)
	}
	var claimed model.PipelineTask
	json.Unmarshal(env.Data, &claimed)
	if claimed.ID != task.ID || claimed.Status != model.StatusRunning {
		t.Errorf("claimed %s/%s, want %s running", claimed.ID, claimed.Status, task.ID)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv := testServer(t)
	task := mustEnqueue(t, srv, "org_a")

	// succeed before claiming is a conflict
	code, env := do(t, srv, "POST", "/api/v1/tasks/"+task.ID+"/succeed", `{"actual_cost":1}`)
	if code != http.StatusConflict {
		t.Fatalf("succeed on queued: status=%d, want 409", code)
	}
	if env.Error == nil || env.Error.Code != model.ErrCodeInvalidTransition {
		t.Errorf("error = %+v, want INVALID_TRANSITION", env.Error)
	}

	if code, _ = do(t, srv, "POST", "/api/v1/tasks/next", ""); code != http.StatusOK {
		t.Fatalf("claim: status=%d", code)
	}

	code, env = do(t, srv, "POST", "/api/v1/tasks/"+task.ID+"/succeed", `{"actual_cost":2.5}`)
	if code != http.StatusOK {
		t.Fatalf("succeed: status=%d, error=%+v", code, env.Error)
	}
	var done model.PipelineTask
	json.Unmarshal(env.Data, &done)
	if done.Status != model.StatusSucceeded || done.ActualCost != 2.5 {
		t.Errorf("done = %s cost %v", done.Status, done.ActualCost)
	}
}

func TestFail_RequiresError(t *testing.T) {
	srv := testServer(t)
	task := mustEnqueue(t, srv, "org_a")
	do(t, srv, "POST", "/api/v1/tasks/next", "")

	code, _ := do(t, srv, "POST", "/api/v1/tasks/"+task.ID+"/fail", `{}`)
	if code != http.StatusBadRequest {
		t.Errorf("fail without error: status=%d, want 400", code)
	}

	code, env := do(t, srv, "POST", "/api/v1/tasks/"+task.ID+"/fail", `{"error":"boom"}`)
	if code != http.StatusOK {
		t.Fatalf("fail: status=%d, error=%+v", code, env.Error)
	}
}

func TestBlockUnblockOverHTTP(t *testing.T) {
	srv := testServer(t)
	task := mustEnqueue(t, srv, "org_a")

	code, _ := do(t, srv, "POST", "/api/v1/tasks/"+task.ID+"/block", `{}`)
	if code != http.StatusBadRequest {
		t.Errorf("block without reason: status=%d, want 400", code)
	}

	code, env := do(t, srv, "POST", "/api/v1/tasks/"+task.ID+"/block", `{"reason":"quota"}`)
	if code != http.StatusOK {
		t.Fatalf("block: status=%d, error=%+v", code, env.Error)
	}
	var blocked model.PipelineTask
	json.Unmarshal(env.Data, &blocked)
	if blocked.Status != model.StatusBlocked {
		t.Errorf("status = %s, want blocked", blocked.Status)
	}

	code, env = do(t, srv, "POST", "/api/v1/tasks/"+task.ID+"/unblock", "")
	if code != http.StatusOK {
		t.Fatalf("unblock: status=%d, error=%+v", code, env.Error)
	}
	var unblocked model.PipelineTask
	json.Unmarshal(env.Data, &unblocked)
	if unblocked.Status != model.StatusQueued {
		t.Errorf("status = %s, want queued", unblocked.Status)
	}
}

func TestListTasks_Pagination(t *testing.T) {
	srv := testServer(t)
	for i := 0; i < 5; i++ {
		mustEnqueue(t, srv, "org_a")
	}
	mustEnqueue(t, srv, "org_b")

	code, env := do(t, srv, "GET", "/api/v1/tasks?tenant_id=org_a&limit=2", "")
	if code != http.StatusOK {
		t.Fatalf("list: status=%d", code)
	}
	var tasks []model.PipelineTask
	json.Unmarshal(env.Data, &tasks)
	if len(tasks) != 2 {
		t.Errorf("len = %d, want 2", len(tasks))
	}
	if env.Pagination == nil || env.Pagination.Total != 5 || !env.Pagination.HasMore {
		t.Errorf("pagination = %+v, want total 5 has_more", env.Pagination)
	}
}

func TestStats(t *testing.T) {
	srv := testServer(t)
	mustEnqueue(t, srv, "org_a")

	code, env := do(t, srv, "GET", "/api/v1/stats?tenant_id=org_a", "")
	if code != http.StatusOK {
		t.Fatalf("stats: status=%d", code)
	}
	var stats model.QueueStats
	json.Unmarshal(env.Data, &stats)
	if stats.StatusCounts[model.StatusQueued] != 1 {
		t.Errorf("queued = %d, want 1", stats.StatusCounts[model.StatusQueued])
	}
}

func TestRateLimitMapsTo429(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.DefaultServerConfig()
	cfg.Scheduler.RateLimitPerTaskType = map[model.TaskType]int{model.TaskTypeCritique: 1}

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := scheduler.New(st, admission.ForConfig(st, cfg.Scheduler, logger),
		cfg.Scheduler, clock.Real{}, audit.Nop{}, logger)
	srv := New(cfg, svc, logger)

	mustEnqueue(t, srv, "org_a")
	code, env := do(t, srv, "POST", "/api/v1/tasks", enqueueBody("org_a"))
	if code != http.StatusTooManyRequests {
		t.Errorf("status=%d, want 429", code)
	}
	if env.Error == nil || env.Error.Code != model.ErrCodeRateLimitExceeded {
		t.Errorf("error = %+v, want RATE_LIMIT_EXCEEDED", env.Error)
	}
}
