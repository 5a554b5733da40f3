// Package metrics exposes scheduling cycle outcomes as Prometheus
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskweave/taskweave/schedule"
)

// Metrics implements schedule.Observer over a Prometheus registry.
type Metrics struct {
	cyclesTotal      prometheus.Counter
	tasksScheduled   prometheus.Counter
	tasksRescheduled prometheus.Counter
	tasksSkipped     prometheus.Counter
	taskErrors       prometheus.Counter
	ticksSkipped     prometheus.Counter
	cycleDuration    prometheus.Histogram
}

// New creates the cycle metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskweave_cycles_total",
			Help: "Completed scheduling cycles.",
		}),
		tasksScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskweave_tasks_scheduled_total",
			Help: "Tasks placed for the first time.",
		}),
		tasksRescheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskweave_tasks_rescheduled_total",
			Help: "Tasks re-placed after a stale or past placement.",
		}),
		tasksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskweave_tasks_skipped_total",
			Help: "Tasks that found no fitting slot run.",
		}),
		taskErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskweave_task_errors_total",
			Help: "Tasks whose fetch or write-back failed after retries.",
		}),
		ticksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskweave_ticks_skipped_total",
			Help: "Timer ticks skipped because a cycle was still running.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskweave_cycle_duration_seconds",
			Help:    "Wall-clock duration of a scheduling cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.cyclesTotal,
		m.tasksScheduled,
		m.tasksRescheduled,
		m.tasksSkipped,
		m.taskErrors,
		m.ticksSkipped,
		m.cycleDuration,
	)
	return m
}

// ObserveCycle records one cycle's stats.
func (m *Metrics) ObserveCycle(stats schedule.CycleStats) {
	m.cyclesTotal.Inc()
	m.tasksScheduled.Add(float64(stats.Scheduled))
	m.tasksRescheduled.Add(float64(stats.Rescheduled))
	m.tasksSkipped.Add(float64(stats.Skipped))
	m.taskErrors.Add(float64(stats.Errors))
	m.cycleDuration.Observe(stats.Duration.Seconds())
}

// ObserveTickSkipped records an overlapping timer tick.
func (m *Metrics) ObserveTickSkipped() {
	m.ticksSkipped.Inc()
}
