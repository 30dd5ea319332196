package orders

import (
	"time"

	"github.com/andresvel/commerce-sync/internal/events"
)

// CartLine is a transient line inside an order-building session; it becomes
// an immutable item snapshot once the order is created.
type CartLine = events.LineItem

type Order struct {
	OrderID    string     `json:"order_id"`
	CustomerID string     `json:"customer_id,omitempty"`
	Status     Status     `json:"status"`
	Items      []CartLine `json:"items"` // immutable after creation
	TotalCents int        `json:"total_cents"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

// Stats over the whole orders document. RevenueCents counts COMPLETED only.
type Stats struct {
	Total            int `json:"total"`
	Pending          int `json:"pending"`
	Completed        int `json:"completed"`
	Cancelled        int `json:"cancelled"`
	RevenueCents     int `json:"revenue_cents"`
	AvgCompletedCent int `json:"avg_completed_cents"`
}
