package conn

import (
	"sync"
	"time"

	"github.com/leapstack-labs/dbkit/pkg/core"
)

// EventType identifies a connection lifecycle event.
type EventType string

// Lifecycle events emitted by a Manager.
const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventError        EventType = "error"
)

// Event is one lifecycle notification.
type Event struct {
	Type   EventType
	Vendor core.Vendor
	Err    error
	Time   time.Time
}

// eventBus broadcasts lifecycle events to all subscribed listeners.
// Publishing is non-blocking: a listener whose channel is full misses
// the event rather than stalling the manager.
type eventBus struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
	closed    bool
}

func newEventBus() *eventBus {
	return &eventBus{listeners: make(map[chan Event]struct{})}
}

func (b *eventBus) subscribe() chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners[ch] = struct{}{}
	return ch
}

func (b *eventBus) unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[ch]; !ok {
		return
	}
	delete(b.listeners, ch)
	close(ch)
}

func (b *eventBus) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *eventBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.listeners {
		delete(b.listeners, ch)
		close(ch)
	}
}
