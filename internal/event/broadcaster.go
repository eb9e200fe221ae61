// Package event distributes core events (status, position, connection,
// telemetry) to display collaborators such as the dashboard server.
package event

import (
	"sync"

	"lasergimbal/internal/model"
)

// Broadcaster fans events out to multiple subscribers. Delivery is
// fire-and-forget: a subscriber with a full buffer misses the event, which
// is acceptable because consumers only need the latest state.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan model.Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[chan model.Event]struct{})}
}

// Subscribe returns a channel that receives published events and a cleanup
// function. The caller must call the cleanup when done.
func (b *Broadcaster) Subscribe() (<-chan model.Event, func()) {
	ch := make(chan model.Event, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Publish sends an event to all subscribers without blocking.
func (b *Broadcaster) Publish(ev model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- ev:
		default:
			// subscriber is slow, drop
		}
	}
}

// Status is a convenience for publishing a status text event.
func (b *Broadcaster) Status(msg string) {
	b.Publish(model.StatusEvent(msg))
}
