// Package metrics holds Prometheus instruments shared by the sign-in
// service.  All collectors are registered with the global registry, so
// mounting promhttp.Handler() is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SubmitTotal counts submissions by outcome: invalid, succeeded,
	// rejected, transport_failed, busy, or closed.
	SubmitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signin_submit_total",
			Help: "Sign-in submissions by outcome.",
		}, []string{"outcome"})

	// EndpointDuration observes round trips to the remote auth endpoint.
	EndpointDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signin_endpoint_duration_seconds",
			Help:    "Latency of requests to the remote auth endpoint.",
			Buckets: prometheus.DefBuckets,
		})

	LateResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signin_late_results_total",
			Help: "Endpoint replies that arrived after their form was closed.",
		})

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "signin_active_sessions",
			Help: "Number of sign-in forms currently held in memory.",
		})

	SessionEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signin_session_evict_total",
			Help: "Cumulative number of sign-in forms evicted from memory.",
		})
)

func init() {
	prometheus.MustRegister(
		SubmitTotal,
		EndpointDuration,
		LateResultsTotal,
		ActiveSessions,
		SessionEvictTotal,
	)
}
