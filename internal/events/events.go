package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification names shared by the three domains. The names travel on the
// wire (Kafka relay) so they must stay stable.
const (
	SaleCreated      = "SALE_CREATED"
	SalePaid         = "SALE_PAID"
	SaleCancelled    = "SALE_CANCELLED"
	InventoryUpdated = "INVENTORY_UPDATED"
	SalesDBUpdated   = "SALES_DB_UPDATED"
	OrderUpdated     = "ORDER_UPDATED"
)

type Envelope struct {
	EventID    string          `json:"event_id"` // uuid
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"` // RFC3339
	Producer   string          `json:"producer"`    // e.g., "orders"
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload struct for publication.
func NewEnvelope(eventType, producer string, payload any) Envelope {
	return Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Producer:   producer,
		Payload:    MustMarshal(payload),
	}
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// UnwrapPayload memudahkan decode payload spesifik.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

// LineItem is the single line shape used everywhere a cart line travels:
// order items, sale product snapshots and the SALE_CREATED payload.
type LineItem struct {
	ProductID  int    `json:"product_id"`
	Name       string `json:"name"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

func (li LineItem) SubtotalCents() int { return li.Qty * li.PriceCents }

// ---- Payload tipe per event ----

type SaleCreatedPayload struct {
	SaleID     string     `json:"sale_id"`
	OrderID    string     `json:"order_id"`
	TotalCents int        `json:"total_cents"`
	Items      []LineItem `json:"items"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

type SalePaidPayload struct {
	SaleID     string     `json:"sale_id"`
	OrderID    string     `json:"order_id"`
	Products   []LineItem `json:"products"`
	TotalCents int        `json:"total_cents"`
}

type SaleCancelledPayload struct {
	SaleID  string `json:"sale_id"`
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type InventoryUpdatedPayload struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type SalesDBUpdatedPayload struct {
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
	TotalSales int       `json:"total_sales"`
}

type OrderUpdatedPayload struct {
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
	TotalOrders int       `json:"total_orders"`
}
