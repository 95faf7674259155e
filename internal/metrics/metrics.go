// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lokniti"

type Metrics struct {
	// HTTPRequests counts requests by method, route template and status.
	HTTPRequests *prometheus.CounterVec
	// HTTPDuration observes request latency by method and route template.
	HTTPDuration *prometheus.HistogramVec
	// Actions counts successful community actions (post, vote, sign, attend, discuss).
	Actions *prometheus.CounterVec
	// Notifications counts notification rows written by fan-out.
	Notifications prometheus.Counter
	// Milestones counts petition milestones reached, by percentage.
	Milestones *prometheus.CounterVec
	// SMS counts SMS deliveries by status (sent, failed).
	SMS *prometheus.CounterVec
	// AIRequests counts AI calls by operation and status.
	AIRequests *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Community actions performed.",
		}, []string{"action"}),
		Notifications: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications written by locality fan-out.",
		}),
		Milestones: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "petition_milestones_total",
			Help:      "Petition milestones reached.",
		}, []string{"percent"}),
		SMS: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sms_total",
			Help:      "SMS alerts by delivery status.",
		}, []string{"status"}),
		AIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Generative AI calls by operation and status.",
		}, []string{"operation", "status"}),
	}
}

// NewNop returns collectors registered on a private registry, for tests and
// tools that do not export metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
