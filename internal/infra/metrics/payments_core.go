package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (pending/succeeded/failed/cancelled).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of successful payments, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount float64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(amount)
}

var reconciledTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payments_reconciled_total",
		Help: "Stale pending payments rechecked by the reconciler, by resulting status.",
	},
	[]string{"status"},
)

func init() { register(reconciledTotal) }

func IncReconciled(status string) {
	reconciledTotal.WithLabelValues(norm(status)).Inc()
}
