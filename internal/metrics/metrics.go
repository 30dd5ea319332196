package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "commerce", Subsystem: "orders", Name: "created_total",
		Help: "Orders created.",
	})
	SalesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "commerce", Subsystem: "sales", Name: "created_total",
		Help: "Sales created (notification or reconciliation).",
	})
	PaymentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "commerce", Subsystem: "sales", Name: "payments_total",
		Help: "Payments processed successfully.",
	})
	SalesCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "commerce", Subsystem: "sales", Name: "cancelled_total",
		Help: "Sales cancelled.",
	})
	ReconcileTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "commerce", Subsystem: "reconciler", Name: "ticks_total",
		Help: "Reconciliation scans executed.",
	})
	ReconciledSales = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "commerce", Subsystem: "reconciler", Name: "sales_recovered_total",
		Help: "Sales synthesized from orders that missed their notification.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
