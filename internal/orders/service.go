package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andresvel/commerce-sync/internal/bus"
	"github.com/andresvel/commerce-sync/internal/events"
	"github.com/andresvel/commerce-sync/internal/inventory"
	"github.com/andresvel/commerce-sync/internal/metrics"
	"github.com/andresvel/commerce-sync/internal/store"
)

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrOrderNotFound = errors.New("order not found")
)

// Reader is the accessor surface the sales domain uses for its
// reconciliation scan. It never exposes a write path.
type Reader interface {
	GetAll(ctx context.Context) ([]Order, error)
}

// Service owns the orders_db key. Orders are append-only: completion and
// cancellation are status transitions, records are never removed.
type Service struct {
	store    store.Store
	bus      *bus.Bus
	inv      inventory.Reader
	producer string

	mu   sync.Mutex // serializes read-modify-write on the owned key
	subs []*bus.Subscription
}

func NewService(st store.Store, b *bus.Bus, inv inventory.Reader) *Service {
	return &Service{store: st, bus: b, inv: inv, producer: "orders"}
}

// Start registers the payment/cancellation listeners. Without Start the
// domain still works for creation; it just never reacts to sale outcomes.
func (s *Service) Start() {
	s.subs = append(s.subs,
		s.bus.Subscribe(events.SalePaid, s.handleSalePaid),
		s.bus.Subscribe(events.SaleCancelled, s.handleSaleCancelled),
	)
}

// Stop deregisters all listeners; no further store writes happen on their
// behalf afterwards.
func (s *Service) Stop() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

// CreateOrder validates the cart against a freshly read inventory snapshot,
// persists the order and publishes SALE_CREATED for the sales domain.
// Exactly one store write and one SALE_CREATED per successful call.
func (s *Service) CreateOrder(ctx context.Context, cart []CartLine, customerID string) (Order, error) {
	if len(cart) == 0 {
		return Order{}, ErrEmptyCart
	}

	// Fresh read, never a cached snapshot: narrows the stale-stock window.
	products, err := s.inv.Snapshot(ctx)
	if err != nil {
		return Order{}, err
	}
	if ok, missing := ValidateStock(cart, products); !ok {
		return Order{}, &inventory.InsufficientStockError{Missing: missing}
	}

	total := 0
	items := make([]CartLine, len(cart))
	copy(items, cart)
	for _, line := range items {
		total += line.SubtotalCents()
	}

	now := time.Now().UTC()
	order := Order{
		OrderID:    "ORD-" + uuid.NewString(),
		CustomerID: customerID,
		Status:     StatusPendingPayment,
		Items:      items,
		TotalCents: total,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	existing, err := s.loadOrders(ctx)
	if err != nil {
		s.mu.Unlock()
		return Order{}, err
	}
	updated, err := s.saveOrders(ctx, append([]Order{order}, existing...), "order created: "+order.OrderID)
	s.mu.Unlock()
	if err != nil {
		return Order{}, err
	}

	// Publish only after the lock is released: the SALE_CREATED listener
	// takes the sales lock, whose holder may be publishing toward us at the
	// same time. Delivery stays synchronous in this goroutine.
	s.bus.Publish(updated)
	s.bus.Publish(events.NewEnvelope(events.SaleCreated, s.producer, events.SaleCreatedPayload{
		SaleID:     "SALE-" + uuid.NewString(),
		OrderID:    order.OrderID,
		TotalCents: order.TotalCents,
		Items:      items,
		Status:     string(order.Status),
		CreatedAt:  order.CreatedAt,
	}))

	metrics.OrdersCreated.Inc()
	log.Printf("orders: created %s total=%d items=%d", order.OrderID, order.TotalCents, len(order.Items))
	return order, nil
}

// CompleteOrder moves PENDING_PAYMENT -> COMPLETED. Completing an already
// completed order is a no-op returning the stored record.
func (s *Service) CompleteOrder(ctx context.Context, orderID string) (Order, error) {
	return s.transition(ctx, orderID, StatusCompleted, func(o *Order) {
		now := time.Now().UTC()
		o.CompletedAt = &now
	})
}

// CancelOrder moves PENDING_PAYMENT -> CANCELLED. Cancelling an already
// cancelled order is a no-op; cancelling a completed one is an error.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) (Order, error) {
	return s.transition(ctx, orderID, StatusCancelled, func(o *Order) {
		now := time.Now().UTC()
		o.CancelledAt = &now
		o.CancelReason = reason
	})
}

func (s *Service) transition(ctx context.Context, orderID string, to Status, mutate func(*Order)) (Order, error) {
	o, updated, err := s.transitionLocked(ctx, orderID, to, mutate)
	if err != nil {
		return Order{}, err
	}
	if updated != nil {
		s.bus.Publish(*updated)
	}
	return o, nil
}

func (s *Service) transitionLocked(ctx context.Context, orderID string, to Status, mutate func(*Order)) (Order, *events.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.loadOrders(ctx)
	if err != nil {
		return Order{}, nil, err
	}
	idx := -1
	for i := range list {
		if list[i].OrderID == orderID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Order{}, nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	o := list[idx]
	if o.Status == to {
		return o, nil, nil // idempotent against redelivery
	}
	if !CanTransition(o.Status, to) {
		return Order{}, nil, fmt.Errorf("order %s: cannot transition %s -> %s", orderID, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	mutate(&o)
	list[idx] = o
	updated, err := s.saveOrders(ctx, list, fmt.Sprintf("order %s -> %s", orderID, to))
	if err != nil {
		return Order{}, nil, err
	}
	return o, &updated, nil
}

// Notification handlers. Unknown order ids are logged and swallowed: the
// sale may reference an order from a store this process never wrote.

func (s *Service) handleSalePaid(e events.Envelope) {
	p, err := events.UnwrapPayload[events.SalePaidPayload](e.Payload)
	if err != nil || p.OrderID == "" {
		log.Printf("orders: bad SALE_PAID payload: %v", err)
		return
	}
	if _, err := s.CompleteOrder(context.Background(), p.OrderID); err != nil {
		log.Printf("orders: SALE_PAID for %s: %v", p.OrderID, err)
	}
}

func (s *Service) handleSaleCancelled(e events.Envelope) {
	p, err := events.UnwrapPayload[events.SaleCancelledPayload](e.Payload)
	if err != nil || p.OrderID == "" {
		log.Printf("orders: bad SALE_CANCELLED payload: %v", err)
		return
	}
	if _, err := s.CancelOrder(context.Background(), p.OrderID, p.Reason); err != nil {
		log.Printf("orders: SALE_CANCELLED for %s: %v", p.OrderID, err)
	}
}

// Accessors.

func (s *Service) GetAll(ctx context.Context) ([]Order, error) {
	return s.loadOrders(ctx)
}

func (s *Service) GetByID(ctx context.Context, orderID string) (Order, error) {
	list, err := s.loadOrders(ctx)
	if err != nil {
		return Order{}, err
	}
	for _, o := range list {
		if o.OrderID == orderID {
			return o, nil
		}
	}
	return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
}

func (s *Service) GetByStatus(ctx context.Context, status Status) ([]Order, error) {
	list, err := s.loadOrders(ctx)
	if err != nil {
		return nil, err
	}
	var out []Order
	for _, o := range list {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	list, err := s.loadOrders(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Total: len(list)}
	for _, o := range list {
		switch o.Status {
		case StatusPendingPayment:
			st.Pending++
		case StatusCompleted:
			st.Completed++
			st.RevenueCents += o.TotalCents
		case StatusCancelled:
			st.Cancelled++
		}
	}
	if st.Completed > 0 {
		st.AvgCompletedCent = st.RevenueCents / st.Completed
	}
	return st, nil
}

// ClearAll empties the document. Test helper, not part of the HTTP surface.
func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	updated, err := s.saveOrders(ctx, []Order{}, "all orders cleared")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.bus.Publish(updated)
	return nil
}

// Storage. Newest order first, matching the display collaborators'
// expectation of creation-order, most-recent-first.

func (s *Service) loadOrders(ctx context.Context) ([]Order, error) {
	raw, err := s.store.Read(ctx, store.KeyOrders)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []Order
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("orders: decode %s: %w", store.KeyOrders, err)
	}
	return list, nil
}

// saveOrders writes the document and returns the ORDER_UPDATED envelope for
// the caller to publish once it has dropped the lock. Publishing under the
// lock invites a deadlock: listeners take the other domain's lock, whose
// holder may be publishing toward us.
func (s *Service) saveOrders(ctx context.Context, list []Order, reason string) (events.Envelope, error) {
	doc, err := json.Marshal(list)
	if err != nil {
		return events.Envelope{}, fmt.Errorf("%w: %v", store.ErrWrite, err)
	}
	if err := s.store.Write(ctx, store.KeyOrders, doc); err != nil {
		return events.Envelope{}, err
	}
	return events.NewEnvelope(events.OrderUpdated, s.producer, events.OrderUpdatedPayload{
		Reason:      reason,
		Timestamp:   time.Now().UTC(),
		TotalOrders: len(list),
	}), nil
}
