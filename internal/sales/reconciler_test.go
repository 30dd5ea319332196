package sales

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresvel/commerce-sync/internal/bus"
	"github.com/andresvel/commerce-sync/internal/inventory"
	"github.com/andresvel/commerce-sync/internal/orders"
	"github.com/andresvel/commerce-sync/internal/store"
)

func newReconcilerFixture(t *testing.T) (*Reconciler, *orders.Service, *Service) {
	t.Helper()
	st := store.NewMemory()
	b := bus.New()
	inv := inventory.NewService(st, b)
	require.NoError(t, inv.Replace(context.Background(), []inventory.Product{
		{ID: 1, Name: "Laptop", PriceCents: 100, Stock: 100},
	}, "test seed"))

	ord := orders.NewService(st, b, inv)
	sal := NewService(st, b, inv)
	// Sales domain deliberately NOT Start()ed: every SALE_CREATED
	// notification is missed, reconciliation must recover them all.
	return NewReconciler(sal, ord, time.Minute), ord, sal
}

func createOrders(t *testing.T, ord *orders.Service, n int) []orders.Order {
	t.Helper()
	out := make([]orders.Order, 0, n)
	for i := 0; i < n; i++ {
		o, err := ord.CreateOrder(context.Background(), []orders.CartLine{
			{ProductID: 1, Name: "Laptop", Qty: i + 1, PriceCents: 100},
		}, fmt.Sprintf("cust-%d", i))
		require.NoError(t, err)
		out = append(out, o)
	}
	return out
}

func TestTickConverges(t *testing.T) {
	ctx := context.Background()
	rec, ord, sal := newReconcilerFixture(t)
	created := createOrders(t, ord, 3)

	n, err := rec.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := sal.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, o := range created {
		sale, err := sal.GetByOrderID(ctx, o.OrderID)
		require.NoError(t, err)
		assert.Equal(t, o.TotalCents, sale.TotalCents, "sale total mirrors its order")
		assert.Equal(t, StatusPendingPayment, sale.Status)
		assert.True(t, o.CreatedAt.Equal(sale.CreatedAt), "createdAt copied from the order")
	}

	// Second tick: nothing new.
	n, err = rec.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	all, err = sal.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTickSkipsTerminalOrders(t *testing.T) {
	ctx := context.Background()
	rec, ord, sal := newReconcilerFixture(t)
	created := createOrders(t, ord, 2)

	// Cancel one order before any sale exists: it must never be
	// resurrected as a fresh pending sale.
	_, err := ord.CancelOrder(ctx, created[0].OrderID, "changed my mind")
	require.NoError(t, err)

	n, err := rec.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = sal.GetByOrderID(ctx, created[0].OrderID)
	assert.ErrorIs(t, err, ErrSaleNotFound)
	_, err = sal.GetByOrderID(ctx, created[1].OrderID)
	assert.NoError(t, err)
}

func TestTickIgnoresOrdersWithExistingSales(t *testing.T) {
	ctx := context.Background()
	rec, ord, sal := newReconcilerFixture(t)
	created := createOrders(t, ord, 2)

	// One order already has its sale (notification got through).
	_, err := sal.CreateFromOrder(ctx, payload(created[0].OrderID,
		created[0].Items[0]))
	require.NoError(t, err)

	n, err := rec.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := sal.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTickOnEmptyStores(t *testing.T) {
	rec, _, _ := newReconcilerFixture(t)
	n, err := rec.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunStopsOnCancel(t *testing.T) {
	rec, _, _ := newReconcilerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- rec.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop on cancel")
	}
	<-rec.Done()
}

func TestRunTicksPeriodically(t *testing.T) {
	st := store.NewMemory()
	b := bus.New()
	inv := inventory.NewService(st, b)
	require.NoError(t, inv.Replace(context.Background(), []inventory.Product{
		{ID: 1, Name: "Laptop", PriceCents: 100, Stock: 100},
	}, "test seed"))
	ord := orders.NewService(st, b, inv)
	sal := NewService(st, b, inv)
	rec := NewReconciler(sal, ord, 10*time.Millisecond)

	createOrders(t, ord, 2)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = rec.Run(ctx) }()

	require.Eventually(t, func() bool {
		all, err := sal.GetAll(context.Background())
		return err == nil && len(all) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-rec.Done()
}
