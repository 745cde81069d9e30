package transport

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments upstream traffic.
type Metrics struct {
	Requests  *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
	Retries   *prometheus.CounterVec
	CacheHits *prometheus.CounterVec
}

// NewMetrics creates unregistered upstream collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridfeed_upstream_requests_total",
				Help: "Upstream requests by authority and status",
			},
			[]string{"authority", "status"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridfeed_upstream_request_duration_seconds",
				Help:    "Upstream request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"authority"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridfeed_upstream_retries_total",
				Help: "Retried upstream sub-requests",
			},
			[]string{"authority"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridfeed_upstream_cache_hits_total",
				Help: "Archive pages served from the in-memory cache",
			},
			[]string{"authority"},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Requests, m.Latency, m.Retries, m.CacheHits} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRetry counts one retry for authority. Safe on a nil receiver.
func (m *Metrics) ObserveRetry(authority string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(authority).Inc()
}
