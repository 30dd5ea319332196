package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/andresvel/commerce-sync/internal/bus"
	"github.com/andresvel/commerce-sync/internal/events"
	"github.com/andresvel/commerce-sync/internal/store"
)

var ErrProductNotFound = errors.New("product not found")

// Reader is the read-only view handed to components that must never write
// stock (the order domain validates against it).
type Reader interface {
	Snapshot(ctx context.Context) ([]Product, error)
}

// Writer is the single write path for inventory_db. Only the sales domain
// holds one: stock moves exclusively on payment.
type Writer interface {
	Reader
	Replace(ctx context.Context, products []Product, reason string) error
}

// Service owns the inventory_db key.
type Service struct {
	store    store.Store
	bus      *bus.Bus
	producer string

	mu sync.Mutex // serializes read-modify-write on the owned key
}

func NewService(st store.Store, b *bus.Bus) *Service {
	return &Service{store: st, bus: b, producer: "inventory"}
}

// SeedIfEmpty writes the default catalog only when inventory_db has never
// been written. Existing stock is never touched on restart.
func (s *Service) SeedIfEmpty(ctx context.Context) error {
	s.mu.Lock()
	_, err := s.store.Read(ctx, store.KeyInventory)
	if err == nil {
		s.mu.Unlock()
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.mu.Unlock()
		return err
	}
	log.Printf("inventory: seeding catalog (%d products)", len(SeedCatalog))
	changed, err := s.write(ctx, SeedCatalog, "seed catalog")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.bus.Publish(changed)
	return nil
}

func (s *Service) Snapshot(ctx context.Context) ([]Product, error) {
	raw, err := s.store.Read(ctx, store.KeyInventory)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("inventory: decode %s: %w", store.KeyInventory, err)
	}
	return products, nil
}

func (s *Service) GetByID(ctx context.Context, id int) (Product, error) {
	products, err := s.Snapshot(ctx)
	if err != nil {
		return Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrProductNotFound
}

// Replace swaps the whole document and announces the change. Callers hand in
// a fully validated next state; nothing partial ever lands here.
//
// The payment path calls Replace while the sales domain holds its own lock,
// so INVENTORY_UPDATED listeners must not call into a domain service.
func (s *Service) Replace(ctx context.Context, products []Product, reason string) error {
	s.mu.Lock()
	changed, err := s.write(ctx, products, reason)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.bus.Publish(changed)
	return nil
}

func (s *Service) write(ctx context.Context, products []Product, reason string) (events.Envelope, error) {
	doc, err := json.Marshal(products)
	if err != nil {
		return events.Envelope{}, fmt.Errorf("%w: %v", store.ErrWrite, err)
	}
	if err := s.store.Write(ctx, store.KeyInventory, doc); err != nil {
		return events.Envelope{}, err
	}
	return events.NewEnvelope(events.InventoryUpdated, s.producer, events.InventoryUpdatedPayload{
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}), nil
}
