// Package metrics holds the proxy's process-wide counters: plain atomic
// values snapshotted into the /health JSON body, mirrored into prometheus
// counters served on /metrics.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is the point-in-time counter view reported by GET /health.
type Snapshot struct {
	TotalRequests      uint64 `json:"total_requests"`
	SuccessfulRequests uint64 `json:"successful_requests"`
	FailedRequests     uint64 `json:"failed_requests"`
	QuotaErrors        uint64 `json:"quota_errors"`
	RetryAttempts      uint64 `json:"retry_attempts"`
}

// Metrics is the set of process-wide counters. All increments are atomic;
// there is no ordering requirement between counters, so readers may observe
// snapshots where e.g. total has advanced but successful has not yet.
type Metrics struct {
	totalRequests      atomic.Uint64
	successfulRequests atomic.Uint64
	failedRequests     atomic.Uint64
	quotaErrors        atomic.Uint64
	retryAttempts      atomic.Uint64

	registry *prometheus.Registry
	promVals struct {
		total      prometheus.Counter
		successful prometheus.Counter
		failed     prometheus.Counter
		quota      prometheus.Counter
		retries    prometheus.Counter
	}
}

// New creates a Metrics set with its own prometheus registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vertexpass",
			Name:      name,
			Help:      help,
		})
		m.registry.MustRegister(c)
		return c
	}

	m.promVals.total = counter("requests_total", "Total chat completion requests received")
	m.promVals.successful = counter("requests_successful_total", "Chat completion requests completed successfully")
	m.promVals.failed = counter("requests_failed_total", "Chat completion requests that ended in an error")
	m.promVals.quota = counter("upstream_quota_errors_total", "Upstream 429 responses indicating quota exhaustion")
	m.promVals.retries = counter("upstream_retry_attempts_total", "Upstream requests retried after a retryable failure")

	m.registry.MustRegister(collectors.NewGoCollector())

	return m
}

func (m *Metrics) RequestReceived() {
	m.totalRequests.Add(1)
	m.promVals.total.Inc()
}

func (m *Metrics) RequestSucceeded() {
	m.successfulRequests.Add(1)
	m.promVals.successful.Inc()
}

func (m *Metrics) RequestFailed() {
	m.failedRequests.Add(1)
	m.promVals.failed.Inc()
}

func (m *Metrics) QuotaError() {
	m.quotaErrors.Add(1)
	m.promVals.quota.Inc()
}

func (m *Metrics) RetryAttempt() {
	m.retryAttempts.Add(1)
	m.promVals.retries.Inc()
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:      m.totalRequests.Load(),
		SuccessfulRequests: m.successfulRequests.Load(),
		FailedRequests:     m.failedRequests.Load(),
		QuotaErrors:        m.quotaErrors.Load(),
		RetryAttempts:      m.retryAttempts.Load(),
	}
}

// Handler serves the prometheus text exposition of this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
