// Package metrics provides Prometheus metrics for the slaq scheduler:
// admission outcomes, queue movement, and SLA breach accounting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TasksEnqueued counts admitted tasks by tenant and type.
var TasksEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "slaq",
	Name:      "tasks_enqueued_total",
	Help:      "Total tasks admitted into the queue.",
}, []string{"tenant", "type"})

// TasksRejected counts admission rejections by reason.
var TasksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "slaq",
	Name:      "tasks_rejected_total",
	Help:      "Total enqueue rejections.",
}, []string{"tenant", "reason"})

// TasksCompleted counts successfully completed tasks by type.
var TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "slaq",
	Name:      "tasks_completed_total",
	Help:      "Total completed tasks.",
}, []string{"type"})

// TasksFailed counts failures by type and outcome (retried vs exhausted).
var TasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "slaq",
	Name:      "tasks_failed_total",
	Help:      "Total task failures.",
}, []string{"type", "outcome"})

// TasksRunning tracks currently claimed tasks.
var TasksRunning = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "slaq",
	Name:      "tasks_running",
	Help:      "Number of currently running tasks.",
})

// QueueWait tracks time from enqueue to claim.
var QueueWait = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "slaq",
	Name:      "queue_wait_seconds",
	Help:      "Time from task enqueue to claim.",
	Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
})

// RunLatency tracks time from claim to completion.
var RunLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "slaq",
	Name:      "run_latency_seconds",
	Help:      "Task execution duration from claim to completion.",
	Buckets:   prometheus.DefBuckets,
}, []string{"type"})

// SLABreaches counts completed tasks that exceeded their latency target.
var SLABreaches = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "slaq",
	Name:      "sla_breaches_total",
	Help:      "Total SLA latency breaches detected on completion.",
}, []string{"tenant", "type"})
