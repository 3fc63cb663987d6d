// Package metrics exposes Prometheus metrics for the task and streaming
// subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TasksActive tracks currently executing tasks.
var TasksActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "crux",
	Name:      "tasks_active",
	Help:      "Number of currently running tasks.",
})

// TasksCompleted tracks completed tasks by kind.
var TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "crux",
	Name:      "tasks_completed_total",
	Help:      "Total tasks that reached the completed state.",
}, []string{"kind"})

// TasksFailed tracks failed tasks by kind and reason.
var TasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "crux",
	Name:      "tasks_failed_total",
	Help:      "Total tasks that reached the failed state.",
}, []string{"kind", "reason"})

// StreamSubscribers tracks attached log-stream subscribers.
var StreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "crux",
	Name:      "stream_subscribers",
	Help:      "Number of currently attached log-stream subscribers.",
})

// TerminalSessions tracks live interactive terminal sessions.
var TerminalSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "crux",
	Name:      "terminal_sessions_active",
	Help:      "Number of live PTY sessions.",
})
