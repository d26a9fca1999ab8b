package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "text", &buf)

	logger.Info("task enqueued", "task_id", "task_abc")

	out := buf.String()
	if !strings.Contains(out, "task enqueued") {
		t.Errorf("message missing from output: %s", out)
	}
	if !strings.Contains(out, "task_id=task_abc") {
		t.Errorf("attribute missing from output: %s", out)
	}
}

func TestNewLoggerWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "json", &buf)

	logger.Info("task enqueued", "tenant_id", "org_a")

	out := buf.String()
	if !strings.Contains(out, `"msg":"task enqueued"`) {
		t.Errorf("JSON msg field missing: %s", out)
	}
	if !strings.Contains(out, `"tenant_id":"org_a"`) {
		t.Errorf("JSON attribute missing: %s", out)
	}
}

func TestNewLoggerWithWriter_UnknownFormatIsText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "xml", &buf)

	logger.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("unknown format should render as text, got: %s", buf.String())
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelWarn, "text", &buf)

	logger.Info("poll tick")
	logger.Warn("sla deadline breached")

	out := buf.String()
	if strings.Contains(out, "poll tick") {
		t.Errorf("info line leaked past warn level: %s", out)
	}
	if !strings.Contains(out, "sla deadline breached") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestNewLoggerWithWriter_ComponentChild(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelDebug, "text", &buf)
	child := logger.With("component", "scheduler")

	child.Debug("claim attempt", "task_id", "task_abc")

	out := buf.String()
	if !strings.Contains(out, "component=scheduler") {
		t.Errorf("component attribute missing: %s", out)
	}
	if !strings.Contains(out, "task_id=task_abc") {
		t.Errorf("task_id attribute missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
