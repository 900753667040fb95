package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "minierp"

// Metrics holds the collectors shared by background jobs. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	drifts   *prometheus.CounterVec
	repaired *prometheus.CounterVec
	skipped  *prometheus.CounterVec
}

var defaultMetrics = sync.OnceValue(func() *Metrics {
	return register(prometheus.DefaultRegisterer)
})

// NewMetrics registers the job collectors with reg. A nil reg shares one set
// registered on the default registerer, so repeated calls do not panic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return defaultMetrics()
	}
	return register(reg)
}

// Observe runs fn as one execution of job and records its outcome and
// duration. The error from fn is returned as is.
func (m *Metrics) Observe(job string, fn func() error) error {
	start := time.Now()
	err := fn()
	if m == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		m.failures.WithLabelValues(job).Inc()
	}
	m.runs.WithLabelValues(job, status).Inc()
	m.duration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	return err
}

// CountDrifts adds n cached balances of the given kind found out of line.
func (m *Metrics) CountDrifts(kind string, n int) {
	if m != nil && n > 0 {
		m.drifts.WithLabelValues(kind).Add(float64(n))
	}
}

// CountRepaired adds n cached balances rewritten by job.
func (m *Metrics) CountRepaired(job string, n int) {
	if m != nil && n > 0 {
		m.repaired.WithLabelValues(job).Add(float64(n))
	}
}

// Skip records a run of job abandoned because another worker held its lock.
func (m *Metrics) Skip(job string) {
	if m != nil {
		m.skipped.WithLabelValues(job).Inc()
	}
}

func register(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Job executions by job name and outcome.",
		}, []string{"job", "status"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failures_total",
			Help:      "Failed job executions.",
		}, []string{"job"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution time in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		drifts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_balance_drifts_total",
			Help:      "Cached balances found to disagree with their source rows.",
		}, []string{"kind"}),
		repaired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_balance_repairs_total",
			Help:      "Cached balances rewritten by reconciliation.",
		}, []string{"job"}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_skipped_total",
			Help:      "Job runs skipped because another worker held the lock.",
		}, []string{"job"}),
	}
}
