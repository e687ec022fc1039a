// Package eventbus decouples the reservation manager from whatever wants
// to hear about reservation state changes. Publishers see a Publisher;
// consumers register a Handler. Delivery is in-process, synchronous and
// best-effort: a handler must not block.
package eventbus

import (
	"log"
	"sync"

	"event-ticketing/shared"
)

// Handler consumes a reservation event. It runs on the publisher's
// goroutine, so it must hand off anything slow.
type Handler func(shared.ReservationEvent)

// Publisher is the side the reservation manager depends on.
type Publisher interface {
	Publish(evt shared.ReservationEvent)
}

// Bus is an observer registry. The zero value is not usable; call New.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

func New() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers evt to every current handler. A panicking handler is
// logged and does not affect the others or the publisher.
func (b *Bus) Publish(evt shared.ReservationEvent) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(h, evt)
	}
}

func (b *Bus) dispatch(h Handler, evt shared.ReservationEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] event handler panicked on %s/%s: %v", evt.ReservationID, evt.NewState, r)
		}
	}()
	h(evt)
}

// Len returns the number of registered handlers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
