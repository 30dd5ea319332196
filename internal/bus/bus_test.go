package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresvel/commerce-sync/internal/events"
)

func TestPublishFansOutInRegistrationOrder(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe("PING", func(e events.Envelope) { got = append(got, "first") })
	b.Subscribe("PING", func(e events.Envelope) { got = append(got, "second") })
	b.Subscribe("OTHER", func(e events.Envelope) { got = append(got, "wrong type") })

	b.Publish(events.NewEnvelope("PING", "test", nil))

	require.Equal(t, []string{"first", "second"}, got)
}

func TestPublishWithNoSubscribersIsSilentDrop(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() {
		b.Publish(events.NewEnvelope("NOBODY_LISTENS", "test", nil))
	})
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	sub := b.Subscribe("PING", func(e events.Envelope) { calls++ })

	b.Publish(events.NewEnvelope("PING", "test", nil))
	require.Equal(t, 1, calls)

	sub.Unsubscribe()
	b.Publish(events.NewEnvelope("PING", "test", nil))
	assert.Equal(t, 1, calls)

	// Second Unsubscribe is a no-op.
	assert.NotPanics(t, sub.Unsubscribe)
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	b := New()
	b.Publish(events.NewEnvelope("PING", "test", nil))

	calls := 0
	b.Subscribe("PING", func(e events.Envelope) { calls++ })
	assert.Zero(t, calls, "events published before subscription must not be replayed")
}

func TestSubscribeAll(t *testing.T) {
	b := New()
	var got []string
	subs := b.SubscribeAll([]string{"A", "B"}, func(e events.Envelope) { got = append(got, e.EventType) })
	require.Len(t, subs, 2)

	b.Publish(events.NewEnvelope("A", "test", nil))
	b.Publish(events.NewEnvelope("B", "test", nil))
	require.Equal(t, []string{"A", "B"}, got)

	for _, s := range subs {
		s.Unsubscribe()
	}
	b.Publish(events.NewEnvelope("A", "test", nil))
	assert.Len(t, got, 2)
}
