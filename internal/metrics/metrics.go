// Package metrics exposes Prometheus collectors for the dispatch substrate.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors for rate limiting, token
// refresh and request dispatch.
type Metrics struct {
	acquisitions *prometheus.CounterVec
	waitDuration *prometheus.HistogramVec
	refreshes    *prometheus.CounterVec
	requests     *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		acquisitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deribit_ratelimit_acquisitions_total",
				Help: "Rate limit acquisitions by category and result",
			},
			[]string{"category", "result"},
		),

		waitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deribit_ratelimit_wait_seconds",
				Help:    "Time callers spent suspended waiting for quota",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"category"},
		),

		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deribit_auth_refreshes_total",
				Help: "Token exchanges against the auth endpoint by grant and result",
			},
			[]string{"grant", "result"},
		),

		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deribit_requests_total",
				Help: "Dispatched requests by rate limit category and outcome",
			},
			[]string{"category", "outcome"},
		),
	}
}

// RecordAcquire records a granted acquisition. waited reports whether the
// caller had to suspend before being admitted.
func (m *Metrics) RecordAcquire(category string, waited bool) {
	if m == nil {
		return
	}
	result := "immediate"
	if waited {
		result = "waited"
	}
	m.acquisitions.WithLabelValues(category, result).Inc()
}

// RecordAcquireCancelled records a caller that gave up while waiting.
func (m *Metrics) RecordAcquireCancelled(category string) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(category, "cancelled").Inc()
}

// ObserveWait records how long a caller was suspended in Acquire.
func (m *Metrics) ObserveWait(category string, d time.Duration) {
	if m == nil {
		return
	}
	m.waitDuration.WithLabelValues(category).Observe(d.Seconds())
}

// RecordRefresh records one token exchange.
func (m *Metrics) RecordRefresh(grant string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.refreshes.WithLabelValues(grant, result).Inc()
}

// RecordRequest records the outcome of one dispatched request.
func (m *Metrics) RecordRequest(category, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(category, outcome).Inc()
}
