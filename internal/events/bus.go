package events

import "sync"

// Listener receives published domain events. Listeners run sequentially on
// the publisher's goroutine; slow listeners delay later ones.
type Listener func(Event)

// Bus fans domain events out to registered listeners. Registration is
// explicit; there is no ambient global state.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a listener for all subsequent events.
func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Publish delivers an event to every listener in registration order.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
}
