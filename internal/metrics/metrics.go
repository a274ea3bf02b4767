package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fishcharter"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	availabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_checks_total",
			Help:      "Availability checks by result (available, booked, reserved, error).",
		},
		[]string{"result"},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation attempts by result.",
		},
		[]string{"result"},
	)

	confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Confirmation attempts by result.",
		},
		[]string{"result"},
	)

	paymentReconciliation = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_reconciliation_total",
			Help:      "Payments captured whose booking write failed afterwards.",
		},
	)

	holdsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_swept_total",
			Help:      "Expired holds removed by the sweeper.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, availabilityChecks, reservations, confirmations, paymentReconciliation, holdsSwept)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

func IncAvailability(result string) {
	availabilityChecks.WithLabelValues(result).Inc()
}

func IncReservation(result string) {
	reservations.WithLabelValues(result).Inc()
}

func IncConfirmation(result string) {
	confirmations.WithLabelValues(result).Inc()
}

func IncReconciliation() {
	paymentReconciliation.Inc()
}

func AddHoldsSwept(n int64) {
	if n > 0 {
		holdsSwept.Add(float64(n))
	}
}
