package bus

import (
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/andresvel/commerce-sync/internal/events"
	kafkax "github.com/andresvel/commerce-sync/internal/kafka"
)

// Relay mirrors every in-process notification onto a Kafka topic so that
// display consumers outside the process can follow along. The in-process bus
// stays the source of truth: the relay is just another best-effort subscriber.
type Relay struct {
	prod *kafkax.Producer
	subs []*Subscription
}

var relayedEvents = []string{
	events.SaleCreated,
	events.SalePaid,
	events.SaleCancelled,
	events.InventoryUpdated,
	events.SalesDBUpdated,
	events.OrderUpdated,
}

// NewRelay subscribes the producer to all notification types. Callers own the
// producer lifecycle (Start/Close/WaitClosed).
func NewRelay(b *Bus, prod *kafkax.Producer) *Relay {
	r := &Relay{prod: prod}
	r.subs = b.SubscribeAll(relayedEvents, r.forward)
	return r
}

func (r *Relay) forward(e events.Envelope) {
	value, err := json.Marshal(e)
	if err != nil {
		return
	}
	// Key by event type: all notifications of one kind stay ordered.
	r.prod.Publish([]byte(e.EventType), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(e.EventType)},
	)
}

// Stop deregisters the relay from the bus. The producer keeps draining until
// its own Close/WaitClosed.
func (r *Relay) Stop() {
	for _, s := range r.subs {
		s.Unsubscribe()
	}
}
