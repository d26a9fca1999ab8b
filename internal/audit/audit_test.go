package audit

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogSink_LogEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	sink.LogEvent(context.Background(), Event{
		Type:       EventEnqueue,
		TenantID:   "org_a",
		ResourceID: "task_123",
		Success:    true,
		Details:    map[string]any{"task_type": "critique"},
	})

	out := buf.String()
	for _, want := range []string{"event=task.enqueue", "tenant_id=org_a", "resource_id=task_123", "task_type=critique"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in audit output, got: %s", want, out)
		}
	}
	if !strings.Contains(out, "level=INFO") {
		t.Errorf("success event should log at INFO, got: %s", out)
	}
}

func TestSlogSink_RejectionLogsWarn(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	sink.LogEvent(context.Background(), Event{
		Type:     EventEnqueue,
		TenantID: "org_a",
		Success:  false,
		Details:  map[string]any{"reason": "rate_limit"},
	})

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("rejection event should log at WARN, got: %s", out)
	}
	if !strings.Contains(out, "reason=rate_limit") {
		t.Errorf("expected reason in output, got: %s", out)
	}
}
