// internal/event/manager.go
package event

import (
	"sync"

	"github.com/bethropolis/tandem/internal/logger"
)

// Handler defines the function signature for event subscribers.
// It returns true if the event was consumed, which stops later handlers.
type Handler func(e Event) bool

// Subscription identifies a handler for Unsubscribe.
type Subscription struct {
	eventType Type
	id        int
}

type entry struct {
	id      int
	handler Handler
}

// Manager handles event subscriptions and dispatching.
type Manager struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Type][]entry // Map event types to a list of handlers
}

// NewManager creates a new event manager.
func NewManager() *Manager {
	return &Manager{
		handlers: make(map[Type][]entry),
	}
}

// Subscribe adds a handler function for a specific event type.
func (m *Manager) Subscribe(eventType Type, handler Handler) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.handlers[eventType] = append(m.handlers[eventType], entry{id: m.nextID, handler: handler})
	logger.DebugTagf("event", "handler subscribed to %v", eventType)
	return Subscription{eventType: eventType, id: m.nextID}
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (m *Manager) Unsubscribe(sub Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.handlers[sub.eventType]
	for i, e := range list {
		if e.id == sub.id {
			m.handlers[sub.eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Dispatch sends an event to all registered handlers for its type, in
// subscription order, on the caller's goroutine.
func (m *Manager) Dispatch(eventType Type, data interface{}) {
	event := Event{
		Type: eventType,
		Data: data,
	}

	m.mu.RLock()
	// Copy so a handler may unsubscribe itself during dispatch.
	handlers := append([]entry(nil), m.handlers[eventType]...)
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	logger.DebugTagf("event", "dispatching %v to %d handler(s)", eventType, len(handlers))
	for _, e := range handlers {
		if e.handler(event) {
			break
		}
	}
}
