package store

import (
	"context"
	"errors"
)

// One document key per domain. Each key has exactly one writing component;
// everybody else only reads.
const (
	KeyInventory = "inventory_db"
	KeyOrders    = "orders_db"
	KeySales     = "sales_db"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("store: key not found")

// ErrWrite wraps any serialization or persistence failure. Writes are whole
// document replacements: a failed write leaves the previous document intact.
var ErrWrite = errors.New("store: write failed")

// Store is a key-addressed document slot. No transactions, no locking;
// writers are expected to compute the complete next document and replace
// the old one in a single call.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, doc []byte) error
}
