package txmetrics

import "github.com/prometheus/client_golang/prometheus"

func (m *Metrics) LockCounter(lock, status string) prometheus.Counter {
	return m.lockTotal.WithLabelValues(lock, status)
}

func (m *Metrics) RetryCounter(op string) prometheus.Counter {
	return m.retriesTotal.WithLabelValues(op)
}

func (m *Metrics) CommitCounter(method, status string) prometheus.Counter {
	return m.commitsTotal.WithLabelValues(method, status)
}

func (m *Metrics) RevertCounter() prometheus.Counter {
	return m.revertsTotal
}
