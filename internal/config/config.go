package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/slaq/pkg/model"
)

// ServerConfig holds configuration for the slaq server process.
type ServerConfig struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format"` // Log format: text, json
	DBPath    string `yaml:"db_path"`    // SQLite database path (default ~/.slaq/slaq.db, ":memory:" for testing)

	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// SchedulerConfig holds the admission, fairness, and retry knobs.
// Passed explicitly into constructors; there is no global instance, so
// tests can run independently configured schedulers side by side.
type SchedulerConfig struct {
	// MaxAttempts is the per-deployment claim budget per task (default 3).
	MaxAttempts int `yaml:"max_attempts"`

	// ConcurrencyCapDefault bounds simultaneously running tasks per
	// tenant unless overridden (default 5).
	ConcurrencyCapDefault int `yaml:"concurrency_cap_default"`

	// ConcurrencyCapPerTenant overrides the default cap for named tenants.
	ConcurrencyCapPerTenant map[string]int `yaml:"concurrency_cap_per_tenant"`

	// RateLimitPerTaskType is the admitted tasks per tenant per trailing
	// minute, keyed by task type. Zero or missing means unlimited.
	RateLimitPerTaskType map[model.TaskType]int `yaml:"rate_limit_per_task_type"`

	// MaxQueueDepthPerTenant bounds a tenant's queued backlog
	// (backpressure). Zero means unlimited.
	MaxQueueDepthPerTenant int `yaml:"max_queue_depth_per_tenant"`

	// MaxLatencyPerTaskType is the post-hoc SLA latency target per task
	// type; exceeding it on success emits a breach warning.
	MaxLatencyPerTaskType map[model.TaskType]Duration `yaml:"max_latency_per_task_type"`

	// DefaultPriorityPerTaskType applies when an enqueue request omits
	// priority. Caller-supplied priority is always authoritative.
	DefaultPriorityPerTaskType map[model.TaskType]int `yaml:"default_priority_per_task_type"`

	// AdmissionPolicy selects the gate implementation: "standard"
	// (rate limit + queue depth) or "budget" (additionally bounds the
	// tenant's in-flight estimated cost).
	AdmissionPolicy string `yaml:"admission_policy"`

	// TenantCostBudget bounds the summed estimated cost of a tenant's
	// queued and running tasks under the "budget" policy.
	TenantCostBudget float64 `yaml:"tenant_cost_budget"`

	// RetryBaseDelay seeds the exponential backoff applied to requeued
	// tasks (default 1s, doubling, capped at RetryMaxDelay).
	RetryBaseDelay Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  Duration `yaml:"retry_max_delay"`
}

// Duration wraps time.Duration so YAML values like "90s" or "2m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		Scheduler: DefaultSchedulerConfig(),
	}
}

// DefaultSchedulerConfig returns production scheduler defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxAttempts:            3,
		ConcurrencyCapDefault:  5,
		MaxQueueDepthPerTenant: 1000,
		AdmissionPolicy:        "standard",
		RetryBaseDelay:         Duration(time.Second),
		RetryMaxDelay:          Duration(time.Minute),
	}
}

// ConcurrencyCap returns the running-task cap for a tenant.
func (c SchedulerConfig) ConcurrencyCap(tenantID string) int {
	if cap, ok := c.ConcurrencyCapPerTenant[tenantID]; ok {
		return cap
	}
	return c.ConcurrencyCapDefault
}

// RateLimit returns the per-minute admission limit for a task type.
// Zero means unlimited.
func (c SchedulerConfig) RateLimit(taskType model.TaskType) int {
	return c.RateLimitPerTaskType[taskType]
}

// MaxLatency returns the success-latency target for a task type.
// Zero means no target.
func (c SchedulerConfig) MaxLatency(taskType model.TaskType) time.Duration {
	return c.MaxLatencyPerTaskType[taskType].Std()
}

// DefaultPriority returns the priority applied when the caller omits one.
func (c SchedulerConfig) DefaultPriority(taskType model.TaskType) int {
	return c.DefaultPriorityPerTaskType[taskType]
}

// Load reads a YAML config file and overlays it on the defaults.
func Load(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
