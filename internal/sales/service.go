package sales

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
	ErrSaleNotFound     = errors.New("sale not found")
	ErrInvalidPayload   = errors.New("invalid sale payload")
	ErrAlreadyPaid      = errors.New("sale already paid")
	ErrAlreadyCancelled = errors.New("sale already cancelled")
)

// Service owns the sales_db key. It is also the only holder of the
// inventory writer: stock moves exclusively on payment, exactly once per
// sale, all lines or none.
type Service struct {
	store    store.Store
	bus      *bus.Bus
	inv      inventory.Writer
	producer string

	mu   sync.Mutex // serializes read-modify-write on the owned key
	subs []*bus.Subscription
}

func NewService(st store.Store, b *bus.Bus, inv inventory.Writer) *Service {
	return &Service{store: st, bus: b, inv: inv, producer: "sales"}
}

// Start registers the SALE_CREATED listener. Orders created while the
// listener was down are recovered by the reconciler, not by the bus.
func (s *Service) Start() {
	s.subs = append(s.subs, s.bus.Subscribe(events.SaleCreated, s.handleSaleCreated))
}

func (s *Service) Stop() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

func (s *Service) handleSaleCreated(e events.Envelope) {
	p, err := events.UnwrapPayload[events.SaleCreatedPayload](e.Payload)
	if err != nil {
		log.Printf("sales: bad SALE_CREATED payload: %v", err)
		return
	}
	if _, err := s.CreateFromOrder(context.Background(), p); err != nil {
		log.Printf("sales: SALE_CREATED for %s: %v", p.OrderID, err)
	}
}

// CreateFromOrder creates a sale idempotently keyed on order_id: a second
// payload for the same order returns the stored sale unchanged. This is what
// makes duplicate notifications and reconciliation re-creation safe.
func (s *Service) CreateFromOrder(ctx context.Context, p events.SaleCreatedPayload) (Sale, error) {
	if p.OrderID == "" || p.TotalCents <= 0 || len(p.Items) == 0 {
		return Sale{}, fmt.Errorf("%w: order_id=%q total=%d items=%d", ErrInvalidPayload, p.OrderID, p.TotalCents, len(p.Items))
	}

	sale, created, err := s.createLocked(ctx, p)
	if err != nil {
		return Sale{}, err
	}
	if created != nil {
		// Published after the lock drops; see ProcessPayment for why.
		s.bus.Publish(*created)
		metrics.SalesCreated.Inc()
		log.Printf("sales: created %s for order %s total=%d", sale.ID, sale.OrderID, sale.TotalCents)
	}
	return sale, nil
}

func (s *Service) createLocked(ctx context.Context, p events.SaleCreatedPayload) (Sale, *events.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.loadSales(ctx)
	if err != nil {
		return Sale{}, nil, err
	}
	for _, existing := range list {
		if existing.OrderID == p.OrderID {
			return existing, nil, nil
		}
	}

	id := p.SaleID
	if id == "" {
		id = "SALE-" + uuid.NewString()
	}
	status := Status(p.Status)
	if status == "" {
		status = StatusPendingPayment
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	products := make([]events.LineItem, len(p.Items))
	copy(products, p.Items)

	sale := Sale{
		ID:         id,
		OrderID:    p.OrderID,
		Status:     status,
		Products:   products,
		TotalCents: p.TotalCents,
		CreatedAt:  createdAt,
		UpdatedAt:  time.Now().UTC(),
	}

	dbUpdated, err := s.saveSales(ctx, append([]Sale{sale}, list...), "sale created from order "+sale.OrderID)
	if err != nil {
		return Sale{}, nil, err
	}
	return sale, &dbUpdated, nil
}

// ProcessPayment decrements stock for every product line and marks the sale
// PAID. The decrement is all-or-nothing: if any line would go negative the
// whole operation fails and no inventory write happens. The inventory write
// strictly precedes the SALE_PAID publish, so subscribers reacting to the
// payment always observe already-decremented stock.
func (s *Service) ProcessPayment(ctx context.Context, saleID string) (Sale, error) {
	sale, pending, err := s.payLocked(ctx, saleID)
	if err != nil {
		return Sale{}, err
	}
	// Publish only after the lock is released: the SALE_PAID listener takes
	// the orders lock, whose holder may be publishing toward us at the same
	// time. Delivery stays synchronous in this goroutine.
	for _, e := range pending {
		s.bus.Publish(e)
	}
	metrics.PaymentsProcessed.Inc()
	log.Printf("sales: payment processed for %s (order %s)", sale.ID, sale.OrderID)
	return sale, nil
}

func (s *Service) payLocked(ctx context.Context, saleID string) (Sale, []events.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.loadSales(ctx)
	if err != nil {
		return Sale{}, nil, err
	}
	idx := s.indexByID(list, saleID)
	if idx == -1 {
		return Sale{}, nil, fmt.Errorf("%w: %s", ErrSaleNotFound, saleID)
	}
	sale := list[idx]
	switch sale.Status {
	case StatusPaid:
		return Sale{}, nil, fmt.Errorf("%w: %s", ErrAlreadyPaid, saleID)
	case StatusCancelled:
		return Sale{}, nil, fmt.Errorf("%w: %s", ErrAlreadyCancelled, saleID)
	}

	next, prev, err := s.decrementedInventory(ctx, sale)
	if err != nil {
		return Sale{}, nil, err
	}
	// Single whole-document write; readers never observe a partial decrement.
	if err := s.inv.Replace(ctx, next, "stock decremented by sale "+sale.ID); err != nil {
		return Sale{}, nil, err
	}

	now := time.Now().UTC()
	sale.Status = StatusPaid
	sale.PaidAt = &now
	sale.UpdatedAt = now
	list[idx] = sale
	dbUpdated, err := s.saveSales(ctx, list, "payment processed for sale "+sale.ID)
	if err != nil {
		// Put the stock back so a payment retry does not decrement twice.
		// Still under the lock, so no other sale writes inventory in between.
		if rerr := s.inv.Replace(ctx, prev, "restock after failed sale write for "+sale.ID); rerr != nil {
			log.Printf("sales: restock after failed sale write for %s: %v", sale.ID, rerr)
		}
		return Sale{}, nil, err
	}

	paid := events.NewEnvelope(events.SalePaid, s.producer, events.SalePaidPayload{
		SaleID:     sale.ID,
		OrderID:    sale.OrderID,
		Products:   sale.Products,
		TotalCents: sale.TotalCents,
	})
	return sale, []events.Envelope{dbUpdated, paid}, nil
}

// decrementedInventory computes the complete next inventory document,
// validating every line before anything is written. The untouched current
// document is returned alongside so a failed payment can restock.
func (s *Service) decrementedInventory(ctx context.Context, sale Sale) (next, current []inventory.Product, err error) {
	current, err = s.inv.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[int]int, len(sale.Products)) // product id -> qty
	for _, line := range sale.Products {
		byID[line.ProductID] += line.Qty
	}

	next = make([]inventory.Product, len(current))
	copy(next, current)
	var missing []inventory.StockShortfall
	for i := range next {
		qty, wanted := byID[next[i].ID]
		if !wanted {
			continue
		}
		if next[i].Stock < qty {
			missing = append(missing, inventory.StockShortfall{
				ProductID: next[i].ID,
				Name:      next[i].Name,
				Requested: qty,
				Available: next[i].Stock,
			})
			continue
		}
		next[i].Stock -= qty
	}
	if len(missing) > 0 {
		return nil, nil, &inventory.InsufficientStockError{Missing: missing}
	}
	return next, current, nil
}

// CancelSale marks a pending sale CANCELLED and announces it. A paid sale can
// never be cancelled (no refund/restock path exists); cancelling an already
// cancelled sale returns it unchanged. No inventory mutation either way.
func (s *Service) CancelSale(ctx context.Context, saleID, reason string) (Sale, error) {
	sale, pending, err := s.cancelLocked(ctx, saleID, reason)
	if err != nil {
		return Sale{}, err
	}
	for _, e := range pending {
		s.bus.Publish(e)
	}
	if len(pending) > 0 {
		metrics.SalesCancelled.Inc()
		log.Printf("sales: cancelled %s (order %s): %s", sale.ID, sale.OrderID, reason)
	}
	return sale, nil
}

func (s *Service) cancelLocked(ctx context.Context, saleID, reason string) (Sale, []events.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.loadSales(ctx)
	if err != nil {
		return Sale{}, nil, err
	}
	idx := s.indexByID(list, saleID)
	if idx == -1 {
		return Sale{}, nil, fmt.Errorf("%w: %s", ErrSaleNotFound, saleID)
	}
	sale := list[idx]
	if sale.Status == StatusPaid {
		return Sale{}, nil, fmt.Errorf("%w: %s", ErrAlreadyPaid, saleID)
	}
	if sale.Status == StatusCancelled {
		return sale, nil, nil
	}

	now := time.Now().UTC()
	sale.Status = StatusCancelled
	sale.CancelledAt = &now
	sale.CancelReason = reason
	sale.UpdatedAt = now
	list[idx] = sale
	dbUpdated, err := s.saveSales(ctx, list, "sale cancelled: "+sale.ID)
	if err != nil {
		return Sale{}, nil, err
	}

	cancelled := events.NewEnvelope(events.SaleCancelled, s.producer, events.SaleCancelledPayload{
		SaleID:  sale.ID,
		OrderID: sale.OrderID,
		Reason:  reason,
	})
	return sale, []events.Envelope{dbUpdated, cancelled}, nil
}

// Accessors.

func (s *Service) GetAll(ctx context.Context) ([]Sale, error) {
	return s.loadSales(ctx)
}

func (s *Service) GetByID(ctx context.Context, saleID string) (Sale, error) {
	list, err := s.loadSales(ctx)
	if err != nil {
		return Sale{}, err
	}
	if idx := s.indexByID(list, saleID); idx != -1 {
		return list[idx], nil
	}
	return Sale{}, fmt.Errorf("%w: %s", ErrSaleNotFound, saleID)
}

func (s *Service) GetByOrderID(ctx context.Context, orderID string) (Sale, error) {
	list, err := s.loadSales(ctx)
	if err != nil {
		return Sale{}, err
	}
	for _, sale := range list {
		if sale.OrderID == orderID {
			return sale, nil
		}
	}
	return Sale{}, fmt.Errorf("%w: order %s", ErrSaleNotFound, orderID)
}

func (s *Service) GetByStatus(ctx context.Context, status Status) ([]Sale, error) {
	list, err := s.loadSales(ctx)
	if err != nil {
		return nil, err
	}
	var out []Sale
	for _, sale := range list {
		if sale.Status == status {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	list, err := s.loadSales(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Total: len(list)}
	for _, sale := range list {
		switch sale.Status {
		case StatusPendingPayment:
			st.Pending++
		case StatusPaid:
			st.Paid++
			st.CollectedCents += sale.TotalCents
		case StatusCancelled:
			st.Cancelled++
		}
	}
	if st.Paid > 0 {
		st.AvgPaidCents = st.CollectedCents / st.Paid
	}
	return st, nil
}

// ClearAll empties the document. Test helper, not part of the HTTP surface.
func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	dbUpdated, err := s.saveSales(ctx, []Sale{}, "all sales cleared")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.bus.Publish(dbUpdated)
	return nil
}

func (s *Service) indexByID(list []Sale, saleID string) int {
	for i := range list {
		if list[i].ID == saleID {
			return i
		}
	}
	return -1
}

// Storage. Newest sale first, same convention as the orders document.

func (s *Service) loadSales(ctx context.Context) ([]Sale, error) {
	raw, err := s.store.Read(ctx, store.KeySales)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []Sale
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("sales: decode %s: %w", store.KeySales, err)
	}
	return list, nil
}

// saveSales writes the document and returns the SALES_DB_UPDATED envelope
// for the caller to publish once it has dropped the lock.
func (s *Service) saveSales(ctx context.Context, list []Sale, reason string) (events.Envelope, error) {
	doc, err := json.Marshal(list)
	if err != nil {
		return events.Envelope{}, fmt.Errorf("%w: %v", store.ErrWrite, err)
	}
	if err := s.store.Write(ctx, store.KeySales, doc); err != nil {
		return events.Envelope{}, err
	}
	return events.NewEnvelope(events.SalesDBUpdated, s.producer, events.SalesDBUpdatedPayload{
		Reason:     reason,
		Timestamp:  time.Now().UTC(),
		TotalSales: len(list),
	}), nil
}
