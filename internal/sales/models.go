package sales

import (
	"time"

	"github.com/andresvel/commerce-sync/internal/events"
)

type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusCancelled      Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusPendingPayment: {StatusPaid: true, StatusCancelled: true},
	StatusPaid:           {},
	StatusCancelled:      {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Sale mirrors exactly one order. At most one sale per order_id ever exists;
// CreateFromOrder enforces that.
type Sale struct {
	ID         string            `json:"id"`
	OrderID    string            `json:"order_id"`
	Status     Status            `json:"status"`
	Products   []events.LineItem `json:"products"` // snapshot from the creation payload
	TotalCents int               `json:"total_cents"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`

	PaidAt       *time.Time `json:"paid_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

// Stats over the whole sales document. CollectedCents counts PAID only.
type Stats struct {
	Total          int `json:"total"`
	Pending        int `json:"pending"`
	Paid           int `json:"paid"`
	Cancelled      int `json:"cancelled"`
	CollectedCents int `json:"collected_cents"`
	AvgPaidCents   int `json:"avg_paid_cents"`
}
