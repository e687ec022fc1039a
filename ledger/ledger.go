// Package ledger keeps the authoritative capacity/held/sold counters for
// each ticket type. Every operation on a ticket type is serialized by that
// ticket type's own mutex; different ticket types never contend.
//
// The ledger knows nothing about reservations or TTLs. Callers are
// expected to only confirm or release quantities they previously held;
// violating that is a programming error and panics.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"event-ticketing/shared"
)

var (
	ErrInventoryExhausted = errors.New("inventory exhausted")
	ErrUnknownTicketType  = errors.New("unknown ticket type")
	ErrCapacityImmutable  = errors.New("capacity cannot be changed")
	ErrInvalidCapacity    = errors.New("capacity must be positive")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
)

type entry struct {
	mu       sync.Mutex
	id       string
	eventID  string
	capacity int
	held     int
	sold     int
}

func (e *entry) snapshot() shared.TicketType {
	return shared.TicketType{
		ID:        e.id,
		EventID:   e.eventID,
		Capacity:  e.capacity,
		Held:      e.held,
		Sold:      e.sold,
		Available: e.capacity - e.held - e.sold,
	}
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func New() *Ledger {
	return &Ledger{entries: make(map[string]*entry)}
}

// Register adds a ticket type. Registering an existing id with the same
// capacity and event is a no-op; anything else fails with
// ErrCapacityImmutable.
func (l *Ledger) Register(id, eventID string, capacity int) error {
	return l.restore(id, eventID, capacity, 0)
}

// Restore registers a ticket type whose sales were recorded elsewhere.
// Holds are never restored: they do not outlive the process that took them.
func (l *Ledger) Restore(id, eventID string, capacity, sold int) error {
	if sold < 0 || sold > capacity {
		return fmt.Errorf("restore %s: sold %d outside [0,%d]", id, sold, capacity)
	}
	return l.restore(id, eventID, capacity, sold)
}

func (l *Ledger) restore(id, eventID string, capacity, sold int) error {
	if id == "" {
		return fmt.Errorf("register: %w", ErrUnknownTicketType)
	}
	if capacity <= 0 {
		return ErrInvalidCapacity
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[id]; ok {
		if e.capacity != capacity || e.eventID != eventID {
			return fmt.Errorf("ticket type %s: %w", id, ErrCapacityImmutable)
		}
		return nil
	}
	l.entries[id] = &entry{id: id, eventID: eventID, capacity: capacity, sold: sold}
	return nil
}

func (l *Ledger) lookup(id string) (*entry, error) {
	l.mu.RLock()
	e, ok := l.entries[id]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ticket type %s: %w", id, ErrUnknownTicketType)
	}
	return e, nil
}

// TryHold reserves qty units if they are available and returns the
// resulting counters.
func (l *Ledger) TryHold(id string, qty int) (shared.TicketType, error) {
	if qty < 1 {
		return shared.TicketType{}, ErrInvalidQuantity
	}
	e, err := l.lookup(id)
	if err != nil {
		return shared.TicketType{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capacity-e.held-e.sold < qty {
		return e.snapshot(), ErrInventoryExhausted
	}
	e.held += qty
	return e.snapshot(), nil
}

// ConfirmHold moves qty units from held to sold.
func (l *Ledger) ConfirmHold(id string, qty int) shared.TicketType {
	e := l.mustLookup(id)

	e.mu.Lock()
	defer e.mu.Unlock()
	if qty < 1 || qty > e.held {
		panic(fmt.Sprintf("ledger: confirm %d on %s with only %d held", qty, id, e.held))
	}
	e.held -= qty
	e.sold += qty
	return e.snapshot()
}

// ReleaseHold returns qty held units to the available pool.
func (l *Ledger) ReleaseHold(id string, qty int) shared.TicketType {
	e := l.mustLookup(id)

	e.mu.Lock()
	defer e.mu.Unlock()
	if qty < 1 || qty > e.held {
		panic(fmt.Sprintf("ledger: release %d on %s with only %d held", qty, id, e.held))
	}
	e.held -= qty
	return e.snapshot()
}

func (l *Ledger) mustLookup(id string) *entry {
	e, err := l.lookup(id)
	if err != nil {
		panic("ledger: " + err.Error())
	}
	return e
}

// Get returns a consistent copy of one ticket type.
func (l *Ledger) Get(id string) (shared.TicketType, error) {
	e, err := l.lookup(id)
	if err != nil {
		return shared.TicketType{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// Snapshot returns every ticket type ordered by id. Each entry is
// individually consistent; the set as a whole is not a single instant.
func (l *Ledger) Snapshot() []shared.TicketType {
	return l.collect(func(*entry) bool { return true })
}

// ByEvent returns the ticket types belonging to eventID ordered by id.
func (l *Ledger) ByEvent(eventID string) []shared.TicketType {
	return l.collect(func(e *entry) bool { return e.eventID == eventID })
}

func (l *Ledger) collect(keep func(*entry) bool) []shared.TicketType {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.entries))
	for _, e := range l.entries {
		if keep(e) {
			entries = append(entries, e)
		}
	}
	l.mu.RUnlock()

	out := make([]shared.TicketType, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.snapshot())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
