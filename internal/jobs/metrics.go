// Package jobmetrics instruments the worker's asynq task handlers.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Metrics counts handled tasks by outcome, times them, and counts audit entries
// the worker delivered on behalf of a failed inline flush.
type Metrics struct {
	handled     *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	redelivered *prometheus.CounterVec
}

var (
	sharedOnce sync.Once
	shared     *Metrics
)

// NewMetrics registers the task collectors on registerer. A nil registerer shares
// one set registered on the process-wide default registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	sharedOnce.Do(func() { shared = register(prometheus.DefaultRegisterer) })
	return shared
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rangoon_jobs_total",
			Help: "Worker tasks handled, by task type and outcome.",
		}, []string{"task", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rangoon_job_duration_seconds",
			Help:    "Time spent handling one worker task.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"task"}),
		redelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rangoon_audit_redelivered_total",
			Help: "Audit entries the worker appended after the inline flush failed.",
		}, []string{"resource"}),
	}
	registerer.MustRegister(m.handled, m.latency, m.redelivered)
	return m
}

// Tracker times one task run. The zero tracker records nothing.
type Tracker struct {
	m     *Metrics
	task  string
	start time.Time
}

// Track starts timing a run of task.
func (m *Metrics) Track(task string) *Tracker {
	return &Tracker{m: m, task: task, start: time.Now()}
}

// End records the run and hands err back so handlers can `return t.End(err)`.
func (t *Tracker) End(err error) error {
	if t == nil || t.m == nil {
		return err
	}
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	t.m.handled.WithLabelValues(t.task, outcome).Inc()
	t.m.latency.WithLabelValues(t.task).Observe(time.Since(t.start).Seconds())
	return err
}

// Redelivered counts one audit entry for resource reaching the primary sink
// through the worker.
func (m *Metrics) Redelivered(resource string) {
	if m == nil {
		return
	}
	m.redelivered.WithLabelValues(resource).Inc()
}
