package mapreduce

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the job's JobState counters as Prometheus gauges. It
// never reads the Scheduler's lock directly — callers push a Snapshot()
// into Update after each state-changing RPC completes, keeping the
// scheduler's critical section free of anything but pure bookkeeping.
type Metrics struct {
	idleMap        prometheus.Gauge
	inProgressMap  prometheus.Gauge
	completedMap   prometheus.Gauge
	idleReduce     prometheus.Gauge
	inProgressReduce prometheus.Gauge
	completedReduce  prometheus.Gauge
	finished       prometheus.Gauge
}

// NewMetrics registers the job gauges with reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gomapreduce",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(g)
		return g
	}

	return &Metrics{
		idleMap:          gauge("idle_map_tasks", "Number of map tasks in state IDLE."),
		inProgressMap:    gauge("in_progress_map_tasks", "Number of map tasks in state IN_PROGRESS."),
		completedMap:     gauge("completed_map_tasks", "Number of map tasks in state COMPLETE."),
		idleReduce:       gauge("idle_reduce_tasks", "Number of reduce tasks in state IDLE."),
		inProgressReduce: gauge("in_progress_reduce_tasks", "Number of reduce tasks in state IN_PROGRESS."),
		completedReduce:  gauge("completed_reduce_tasks", "Number of reduce tasks in state COMPLETE."),
		finished:         gauge("job_finished", "1 once the job has finished, 0 until then."),
	}
}

// Update pushes a JobState snapshot into the gauges.
func (m *Metrics) Update(state JobState) {
	if m == nil {
		return
	}
	m.idleMap.Set(float64(state.IdleMap))
	m.inProgressMap.Set(float64(state.InProgressMap))
	m.completedMap.Set(float64(state.CompletedMap))
	m.idleReduce.Set(float64(state.IdleReduce))
	m.inProgressReduce.Set(float64(state.InProgressReduce))
	m.completedReduce.Set(float64(state.CompletedReduce))
	if state.Finished {
		m.finished.Set(1)
	} else {
		m.finished.Set(0)
	}
}

// Handler serves the Prometheus text exposition format for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
