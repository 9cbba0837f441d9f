// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchasedesk_http_requests_total",
			Help: "HTTP requests handled, by route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "purchasedesk_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	blobOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchasedesk_blob_operations_total",
			Help: "Object store calls, by operation and result.",
		},
		[]string{"operation", "result"},
	)

	softWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchasedesk_soft_warnings_total",
			Help: "Secondary store failures that were downgraded to warnings.",
		},
		[]string{"component", "reason"},
	)
)

func ObserveHTTPRequest(method, route, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

func ObserveBlobOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	blobOperationsTotal.WithLabelValues(operation, result).Inc()
}

func SoftWarning(component, reason string) {
	softWarningsTotal.WithLabelValues(component, reason).Inc()
}
