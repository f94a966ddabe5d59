// Package metrics defines and registers all Prometheus metrics for the
// agent. Consumers obtain a *Metrics instance via NewMetrics() and use the
// exported fields to record observations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "k8s_agent"
)

// Metrics holds all Prometheus metric collectors for the agent.
type Metrics struct {
	// QueriesTotal counts natural-language cluster queries served.
	QueriesTotal prometheus.Counter

	// DebugRequestsTotal counts pod diagnostic requests, partitioned by the
	// classified issue type ("none" when no rule fired).
	DebugRequestsTotal *prometheus.CounterVec

	// QueryDuration observes end-to-end query handling time in seconds.
	QueryDuration prometheus.Histogram

	// DebugDuration observes end-to-end diagnostic time in seconds.
	DebugDuration prometheus.Histogram

	// ErrorsTotal counts request failures, partitioned by error type
	// (not_found, transient_fetch, model_transport, bad_request).
	ErrorsTotal *prometheus.CounterVec

	// ModelRequestsTotal counts model API calls, partitioned by backend
	// and outcome (success/error).
	ModelRequestsTotal *prometheus.CounterVec

	// ModelTokensUsedTotal counts tokens consumed, partitioned by backend
	// and direction (input/output).
	ModelTokensUsedTotal *prometheus.CounterVec

	// ModelRequestDuration observes model response latency in seconds.
	ModelRequestDuration prometheus.Histogram

	// ClusterPods reports the pod count seen by the last cluster summary.
	ClusterPods prometheus.Gauge

	// ClusterServices reports the service count seen by the last cluster
	// summary.
	ClusterServices prometheus.Gauge

	// ClusterDeployments reports the deployment count seen by the last
	// cluster summary.
	ClusterDeployments prometheus.Gauge
}

// NewMetrics creates a new Metrics instance and registers all collectors with
// the provided prometheus.Registerer. Use prometheus.DefaultRegisterer for
// the standard global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of natural-language cluster queries served.",
			},
		),

		DebugRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "debug_requests_total",
				Help:      "Total number of pod diagnostic requests.",
			},
			[]string{"issue_type"},
		),

		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "End-to-end query handling time in seconds.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
		),

		DebugDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "debug_duration_seconds",
				Help:      "End-to-end pod diagnostic time in seconds.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of request failures.",
			},
			[]string{"error_type"},
		),

		ModelRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_requests_total",
				Help:      "Total number of model API calls.",
			},
			[]string{"backend", "outcome"},
		),

		ModelTokensUsedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_tokens_used_total",
				Help:      "Total tokens consumed by model calls.",
			},
			[]string{"backend", "direction"},
		),

		ModelRequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_request_duration_seconds",
				Help:      "Model response latency in seconds.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
		),

		ClusterPods: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cluster_pods",
				Help:      "Pod count seen by the last cluster summary.",
			},
		),

		ClusterServices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cluster_services",
				Help:      "Service count seen by the last cluster summary.",
			},
		),

		ClusterDeployments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cluster_deployments",
				Help:      "Deployment count seen by the last cluster summary.",
			},
		),
	}

	reg.MustRegister(
		m.QueriesTotal,
		m.DebugRequestsTotal,
		m.QueryDuration,
		m.DebugDuration,
		m.ErrorsTotal,
		m.ModelRequestsTotal,
		m.ModelTokensUsedTotal,
		m.ModelRequestDuration,
		m.ClusterPods,
		m.ClusterServices,
		m.ClusterDeployments,
	)

	return m
}
