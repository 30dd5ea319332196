package inventory

import (
	"fmt"
	"strings"
)

type Product struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	Stock      int    `json:"stock"`
	Image      string `json:"image,omitempty"`
}

// StockShortfall describes one cart line that asks for more than is on hand.
// Carries the name so callers can render it without another lookup.
type StockShortfall struct {
	ProductID int    `json:"product_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError reports every shortfall in the rejected operation,
// not just the first one.
type InsufficientStockError struct {
	Missing []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s: requested %d, available %d", m.Name, m.Requested, m.Available))
	}
	return "insufficient stock: " + strings.Join(parts, " | ")
}
