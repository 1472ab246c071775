package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		GatewayRequests,
		GatewayDuration,
		CallbacksTotal,
	)
}

var (
	// Count of IMEPay API calls.
	// operation: token|confirm|recheck
	// result: ok|transport_error|gateway_error|error
	GatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imepay_gateway_requests_total",
			Help: "Count of IMEPay API calls by operation and result.",
		},
		[]string{"operation", "result"},
	)

	GatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imepay_gateway_request_duration_seconds",
			Help:    "Duration of IMEPay API calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"operation"},
	)

	// Inbound callbacks grouped by HTTP method and outcome.
	// result: succeeded|failed|cancelled|decode_error|not_found|error
	CallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imepay_callbacks_total",
			Help: "IMEPay callbacks by method and result.",
		},
		[]string{"method", "result"},
	)
)

// ObserveGatewayCall records one IMEPay API call started at start.
func ObserveGatewayCall(operation, result string, start time.Time) {
	GatewayRequests.WithLabelValues(norm(operation), norm(result)).Inc()
	GatewayDuration.WithLabelValues(norm(operation)).Observe(time.Since(start).Seconds())
}

func IncCallback(method, result string) {
	CallbacksTotal.WithLabelValues(norm(method), norm(result)).Inc()
}
