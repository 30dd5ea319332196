package bus

import (
	"sync"

	"github.com/andresvel/commerce-sync/internal/events"
)

// Handler runs synchronously inside the publisher's call. Return value is
// deliberately absent: delivery is fire-and-forget, a handler that needs to
// fail does so on its own side (log + swallow, or repair via reconciliation).
type Handler func(e events.Envelope)

// Bus is an in-process broadcast channel. Nothing is persisted: a subscriber
// that is not registered at publish time never sees the event. Consumers that
// cannot tolerate that must pair the bus with a reconciliation scan.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription // event type -> handlers, registration order
}

type subscription struct {
	id int
	h  Handler
}

// Subscription deregisters one handler. Safe to call more than once.
type Subscription struct {
	bus       *Bus
	eventType string
	id        int
}

func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

func (b *Bus) Subscribe(eventType string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[eventType] = append(b.subs[eventType], subscription{id: b.nextID, h: h})
	return &Subscription{bus: b, eventType: eventType, id: b.nextID}
}

// SubscribeAll registers a handler for every event type in types.
// Returns one Subscription per type, in the same order.
func (b *Bus) SubscribeAll(types []string, h Handler) []*Subscription {
	out := make([]*Subscription, 0, len(types))
	for _, t := range types {
		out = append(out, b.Subscribe(t, h))
	}
	return out
}

func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	list := s.bus.subs[s.eventType]
	for i, sub := range list {
		if sub.id == s.id {
			s.bus.subs[s.eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish fans out synchronously to the handlers registered for
// e.EventType, in registration order. No subscribers is a silent drop.
func (b *Bus) Publish(e events.Envelope) {
	b.mu.RLock()
	list := make([]subscription, len(b.subs[e.EventType]))
	copy(list, b.subs[e.EventType])
	b.mu.RUnlock()

	for _, sub := range list {
		sub.h(e)
	}
}
