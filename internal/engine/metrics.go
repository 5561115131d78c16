package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tlane/browserpilot/internal/model"
)

var (
	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "browserpilot_tasks_total",
			Help: "Total number of tasks that reached a terminal status.",
		},
		[]string{"status"},
	)

	taskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "browserpilot_task_duration_seconds",
			Help:    "Task execution time from the running transition to the terminal status, in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(tasksTotal)
	prometheus.MustRegister(taskDuration)

	// Pre-initialize label combinations so they appear in /metrics with value
	// 0 from startup, rather than only after the first terminal task.
	tasksTotal.WithLabelValues(model.StatusCompleted)
	tasksTotal.WithLabelValues(model.StatusFailed)
}
