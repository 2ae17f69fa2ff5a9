// Package bus is the in-process typed publish/subscribe registry connecting
// workflow mutations to the operation log. Delivery is synchronous and
// fire-and-forget: no queueing, no retry, events with zero subscribers are
// dropped.
package bus

import (
	"sync"

	"robodata.org/internal/obs"
)

// Handler receives a published payload. The concrete type matches the event
// type the handler subscribed to.
type Handler func(payload any)

type subscription struct {
	id int
	fn Handler
}

// Bus fans events out to subscribers in registration order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]subscription
	next     int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[Type][]subscription)}
}

// Subscribe registers a handler for the event type and returns the
// unsubscribe function. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(t Type, h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[t] = append(b.handlers[t], subscription{id: id, fn: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[t]
		for i, s := range subs {
			if s.id == id {
				b.handlers[t] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish invokes every handler subscribed to t, synchronously, in
// registration order. A panicking handler is contained and logged so it
// cannot break delivery to the handlers after it.
func (b *Bus) Publish(t Type, payload any) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[t]))
	copy(subs, b.handlers[t])
	b.mu.RUnlock()

	obs.CountEventPublished(string(t))

	for _, s := range subs {
		invoke(t, s.fn, payload)
	}
}

func invoke(t Type, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			obs.LogEvent("bus_handler_panic", map[string]any{
				"event_type": string(t),
				"panic":      r,
			})
		}
	}()
	h(payload)
}
