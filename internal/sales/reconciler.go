package sales

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/andresvel/commerce-sync/internal/events"
	"github.com/andresvel/commerce-sync/internal/metrics"
	"github.com/andresvel/commerce-sync/internal/orders"
)

// Reconciler compensates for the bus's best-effort delivery: every tick it
// scans orders_db for pending orders that have no sale and synthesizes the
// missing one. CreateFromOrder is idempotent on order_id, so repeated ticks
// never duplicate sales.
type Reconciler struct {
	sales    *Service
	orders   orders.Reader
	interval time.Duration
	done     chan struct{}
}

func NewReconciler(s *Service, or orders.Reader, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Reconciler{sales: s, orders: or, interval: interval, done: make(chan struct{})}
}

// Run ticks until ctx is cancelled. An in-flight tick runs to completion on
// shutdown (idempotency makes that safe); after Run returns no further store
// writes happen on the reconciler's behalf.
func (r *Reconciler) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n, err := r.Tick(ctx); err != nil {
				log.Printf("reconciler: tick: %v", err)
			} else if n > 0 {
				log.Printf("reconciler: recovered %d sale(s) from unmatched orders", n)
			}
		}
	}
}

// Done is closed once Run has exited.
func (r *Reconciler) Done() <-chan struct{} { return r.done }

// Tick performs one scan and returns how many sales were synthesized.
// Only orders still awaiting payment are reconciled: resurrecting a
// cancelled or completed order as a fresh pending sale would undo a
// terminal decision.
func (r *Reconciler) Tick(ctx context.Context) (int, error) {
	metrics.ReconcileTicks.Inc()

	orderList, err := r.orders.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(orderList) == 0 {
		return 0, nil
	}
	saleList, err := r.sales.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	matched := make(map[string]bool, len(saleList))
	for _, sale := range saleList {
		matched[sale.OrderID] = true
	}

	created := 0
	for _, o := range orderList {
		if o.Status != orders.StatusPendingPayment || matched[o.OrderID] {
			continue
		}
		payload := events.SaleCreatedPayload{
			SaleID:     "SALE-" + uuid.NewString(),
			OrderID:    o.OrderID,
			TotalCents: o.TotalCents,
			Items:      o.Items,
			Status:     string(o.Status),
			CreatedAt:  o.CreatedAt,
		}
		if _, err := r.sales.CreateFromOrder(ctx, payload); err != nil {
			log.Printf("reconciler: order %s: %v", o.OrderID, err)
			continue
		}
		created++
		metrics.ReconciledSales.Inc()
	}
	return created, nil
}
