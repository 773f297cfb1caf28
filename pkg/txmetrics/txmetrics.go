// Package txmetrics implements txfile.Metrics with Prometheus collectors.
package txmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/calvinalkan/txfile/pkg/txfile"
)

// Metrics is the Prometheus implementation of [txfile.Metrics].
type Metrics struct {
	lockWait         *prometheus.HistogramVec
	lockTotal        *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
	commitsTotal     *prometheus.CounterVec
	commitDuration   *prometheus.HistogramVec
	revertsTotal     prometheus.Counter
	deferredRemovals prometheus.Counter
}

// New registers the txfile collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		lockWait: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "txfile_lock_wait_milliseconds",
				Help: "Time spent acquiring a lock, including retries",
				Buckets: []float64{
					0.1,   // uncontended
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"lock"},
		),
		lockTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txfile_lock_acquisitions_total",
				Help: "Lock acquisitions by lock type and outcome",
			},
			[]string{"lock", "status"},
		),
		retriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txfile_retries_total",
				Help: "Failed attempts of retried operations",
			},
			[]string{"op"},
		),
		commitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txfile_commits_total",
				Help: "Replacements of a target file by method and outcome",
			},
			[]string{"method", "status"},
		),
		commitDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txfile_commit_duration_milliseconds",
				Help:    "Duration of atomic commits",
				Buckets: []float64{1, 10, 100, 1000},
			},
			[]string{"method", "status"},
		),
		revertsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "txfile_reverts_total",
				Help: "Write transactions discarded",
			},
		),
		deferredRemovals: f.NewCounter(
			prometheus.CounterOpts{
				Name: "txfile_deferred_removals_total",
				Help: "Transient files whose removal had to be deferred",
			},
		),
	}
}

func (m *Metrics) LockAcquired(lt txfile.LockType, wait time.Duration, err error) {
	m.lockTotal.WithLabelValues(lt.String(), status(err)).Inc()

	if err == nil {
		m.lockWait.WithLabelValues(lt.String()).Observe(ms(wait))
	}
}

func (m *Metrics) Retried(op string) {
	m.retriesTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) Committed(d time.Duration, copied bool, err error) {
	method := "rename"
	if copied {
		method = "copy"
	}

	m.commitsTotal.WithLabelValues(method, status(err)).Inc()
	m.commitDuration.WithLabelValues(method, status(err)).Observe(ms(d))
}

func (m *Metrics) Reverted() {
	m.revertsTotal.Inc()
}

func (m *Metrics) RemovalDeferred() {
	m.deferredRemovals.Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}

func ms(d time.Duration) float64 {
	return d.Seconds() * 1000
}

var _ txfile.Metrics = (*Metrics)(nil)
