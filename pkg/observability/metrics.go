package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway call metrics
	gatewayCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "couponflow_gateway_calls_total",
			Help: "Total number of backend gateway calls",
		},
		[]string{"operation", "outcome"},
	)

	gatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "couponflow_gateway_call_duration_seconds",
			Help:    "Duration of backend gateway calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Coupon lifecycle metrics
	activationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "couponflow_coupon_activations_total",
			Help: "Coupon activation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Payment session metrics
	paymentSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "couponflow_payment_sessions_total",
			Help: "Payment sessions by disposition (created, replayed, expired, confirmed)",
		},
		[]string{"disposition"},
	)
)

// ObserveGatewayCall records one backend call with its duration and outcome
func ObserveGatewayCall(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	gatewayCallsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordActivation records one coupon activation attempt
func RecordActivation(success bool) {
	if success {
		activationsTotal.WithLabelValues("success").Inc()
	} else {
		activationsTotal.WithLabelValues("failure").Inc()
	}
}

// RecordPaymentSession records a payment session disposition
func RecordPaymentSession(disposition string) {
	paymentSessionsTotal.WithLabelValues(disposition).Inc()
}
