package sales_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresvel/commerce-sync/internal/bus"
	"github.com/andresvel/commerce-sync/internal/inventory"
	"github.com/andresvel/commerce-sync/internal/orders"
	"github.com/andresvel/commerce-sync/internal/sales"
	"github.com/andresvel/commerce-sync/internal/store"
)

type world struct {
	bus *bus.Bus
	inv *inventory.Service
	ord *orders.Service
	sal *sales.Service
	rec *sales.Reconciler
}

func newWorld(t *testing.T) *world {
	t.Helper()
	st := store.NewMemory()
	b := bus.New()
	inv := inventory.NewService(st, b)
	require.NoError(t, inv.Replace(context.Background(), []inventory.Product{
		{ID: 1, Name: "Laptop", PriceCents: 100, Stock: 10},
	}, "seed"))
	ord := orders.NewService(st, b, inv)
	sal := sales.NewService(st, b, inv)
	sal.Start()
	ord.Start()
	t.Cleanup(sal.Stop)
	t.Cleanup(ord.Stop)
	return &world{
		bus: b, inv: inv, ord: ord, sal: sal,
		rec: sales.NewReconciler(sal, ord, time.Minute),
	}
}

// Create order -> sale via notification -> payment -> inventory decremented,
// sale PAID, order COMPLETED.
func TestPaymentFlow(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	order, err := w.ord.CreateOrder(ctx, []orders.CartLine{
		{ProductID: 1, Name: "Laptop", Qty: 2, PriceCents: 100},
	}, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 200, order.TotalCents)
	assert.Equal(t, orders.StatusPendingPayment, order.Status)

	// Subscribed sales domain picked the notification up synchronously.
	sale, err := w.sal.GetByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.TotalCents, sale.TotalCents)
	assert.Equal(t, sales.StatusPendingPayment, sale.Status)

	_, err = w.sal.ProcessPayment(ctx, sale.ID)
	require.NoError(t, err)

	p, err := w.inv.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Stock)

	gotSale, err := w.sal.GetByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusPaid, gotSale.Status)

	gotOrder, err := w.ord.GetByID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, gotOrder.Status)
	require.NotNil(t, gotOrder.CompletedAt)
}

// Same setup, but cancel instead of paying: stock untouched, cancellation
// reason propagated back to the order.
func TestCancellationFlow(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	order, err := w.ord.CreateOrder(ctx, []orders.CartLine{
		{ProductID: 1, Name: "Laptop", Qty: 2, PriceCents: 100},
	}, "cust-1")
	require.NoError(t, err)

	sale, err := w.sal.GetByOrderID(ctx, order.OrderID)
	require.NoError(t, err)

	_, err = w.sal.CancelSale(ctx, sale.ID, "user cancelled")
	require.NoError(t, err)

	p, err := w.inv.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)

	gotOrder, err := w.ord.GetByID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, gotOrder.Status)
	assert.Equal(t, "user cancelled", gotOrder.CancelReason)
}

// The sales domain comes up after orders were already created: the bus
// dropped the notifications, the reconciler repairs the gap, and payment
// still completes the order end to end.
func TestMissedNotificationRecovery(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	b := bus.New()
	inv := inventory.NewService(st, b)
	require.NoError(t, inv.Replace(ctx, []inventory.Product{
		{ID: 1, Name: "Laptop", PriceCents: 100, Stock: 10},
	}, "seed"))
	ord := orders.NewService(st, b, inv)
	ord.Start()
	defer ord.Stop()

	// Order created while no sales domain is listening.
	order, err := ord.CreateOrder(ctx, []orders.CartLine{
		{ProductID: 1, Name: "Laptop", Qty: 2, PriceCents: 100},
	}, "")
	require.NoError(t, err)

	// Sales domain starts late.
	sal := sales.NewService(st, b, inv)
	sal.Start()
	defer sal.Stop()
	_, err = sal.GetByOrderID(ctx, order.OrderID)
	require.ErrorIs(t, err, sales.ErrSaleNotFound)

	rec := sales.NewReconciler(sal, ord, time.Minute)
	n, err := rec.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sale, err := sal.GetByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.TotalCents, sale.TotalCents)

	_, err = sal.ProcessPayment(ctx, sale.ID)
	require.NoError(t, err)

	gotOrder, err := ord.GetByID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, gotOrder.Status)

	p, err := inv.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Stock)
}

// One goroutine keeps creating orders (publishing SALE_CREATED into the
// sales domain) while another keeps paying sales (publishing SALE_PAID into
// the orders domain). Both loops must drain; a publish made while holding a
// domain lock would wedge them against each other.
func TestConcurrentOrderCreationAndPayment(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	b := bus.New()
	inv := inventory.NewService(st, b)
	require.NoError(t, inv.Replace(ctx, []inventory.Product{
		{ID: 1, Name: "Laptop", PriceCents: 100, Stock: 1 << 20},
	}, "seed"))
	ord := orders.NewService(st, b, inv)
	sal := sales.NewService(st, b, inv)
	sal.Start()
	ord.Start()
	defer sal.Stop()
	defer ord.Stop()

	cart := []orders.CartLine{{ProductID: 1, Name: "Laptop", Qty: 1, PriceCents: 100}}

	// Orders whose sales already exist and are ready to be paid.
	const n = 100
	saleIDs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		order, err := ord.CreateOrder(ctx, cart, "")
		require.NoError(t, err)
		sale, err := sal.GetByOrderID(ctx, order.OrderID)
		require.NoError(t, err)
		saleIDs = append(saleIDs, sale.ID)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if _, err := ord.CreateOrder(ctx, cart, ""); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for _, id := range saleIDs {
			if _, err := sal.ProcessPayment(ctx, id); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent order creation and payment processing never finished")
	}

	stats, err := sal.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, stats.Paid)
	assert.Equal(t, 2*n, stats.Total)

	p, err := inv.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1<<20-n, p.Stock)
}
