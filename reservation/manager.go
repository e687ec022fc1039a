// Package reservation places time-bounded holds against the inventory
// ledger and drives each hold to exactly one terminal state: confirmed,
// released or expired.
//
// Locking: the records map has its own lock, each record has its own
// lock, and the expiry index has a third. A transition holds only the
// record lock (plus the ledger's per-ticket-type lock underneath), so
// the sweep never blocks unrelated holds, confirms or releases.
package reservation

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"event-ticketing/clock"
	"event-ticketing/eventbus"
	"event-ticketing/shared"
)

type record struct {
	mu sync.Mutex
	r  Reservation
}

type nopPublisher struct{}

func (nopPublisher) Publish(shared.ReservationEvent) {}

// Manager owns every reservation record. Safe for concurrent use.
type Manager struct {
	inv    Inventory
	events eventbus.Publisher
	clock  clock.Clock

	holdTTL       time.Duration
	sweepInterval time.Duration
	retention     time.Duration

	mu      sync.RWMutex
	records map[string]*record

	idxMu  sync.Mutex
	expiry expiryIndex
}

type Option func(*Manager)

// WithHoldTTL sets the lifetime of new holds. Zero is allowed and makes
// every hold expire immediately.
func WithHoldTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.holdTTL = d
		}
	}
}

// WithSweepInterval sets how often Run expires overdue holds.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// WithRetention sets how long finalized reservations stay queryable.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

// NewManager returns a Manager. events may be nil.
func NewManager(inv Inventory, events eventbus.Publisher, clk clock.Clock, opts ...Option) *Manager {
	if events == nil {
		events = nopPublisher{}
	}
	m := &Manager{
		inv:           inv,
		events:        events,
		clock:         clk,
		holdTTL:       shared.DefaultHoldTTL,
		sweepInterval: shared.DefaultSweepInterval,
		retention:     shared.DefaultReservationRetention,
		records:       make(map[string]*record),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateHold holds qty units of ticketTypeID for userID. No record is
// created when the ledger refuses the hold.
func (m *Manager) CreateHold(userID, ticketTypeID string, qty int) (Reservation, error) {
	if qty < 1 {
		return Reservation{}, ErrInvalidQuantity
	}
	if userID == "" {
		return Reservation{}, ErrMissingUser
	}

	snap, err := m.inv.TryHold(ticketTypeID, qty)
	if err != nil {
		return Reservation{}, err
	}

	now := m.clock.Now()
	rec := &record{r: Reservation{
		ID:           uuid.NewString(),
		UserID:       userID,
		TicketTypeID: ticketTypeID,
		EventID:      snap.EventID,
		Quantity:     qty,
		State:        shared.StateHeld,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.holdTTL),
	}}
	r := rec.r

	m.mu.Lock()
	m.records[r.ID] = rec
	m.mu.Unlock()

	m.idxMu.Lock()
	m.expiry.add(r.ID, r.ExpiresAt)
	m.idxMu.Unlock()

	m.emit(r, snap, now)
	log.Printf("[HOLD] %s held %d x %s for user %s until %s", r.ID, qty, ticketTypeID, userID, r.ExpiresAt.Format(time.RFC3339))
	return r, nil
}

// Confirm turns a live hold into a sale. A hold past its expiry is
// expired here rather than waiting for the sweep.
func (m *Manager) Confirm(id string) (Reservation, error) {
	rec, err := m.lookup(id)
	if err != nil {
		return Reservation{}, err
	}

	now := m.clock.Now()
	r, snap, err := m.locked(rec, func() (shared.TicketType, error) {
		if rec.r.State.Terminal() {
			return shared.TicketType{}, ErrAlreadyFinalized
		}
		if !now.Before(rec.r.ExpiresAt) {
			_, snap := m.expireLocked(rec, now)
			return snap, ErrExpired
		}
		snap := m.inv.ConfirmHold(rec.r.TicketTypeID, rec.r.Quantity)
		confirmedAt := now
		rec.r.State = shared.StateConfirmed
		rec.r.ConfirmedAt = &confirmedAt
		rec.r.finalizedAt = now
		return snap, nil
	})

	switch {
	case err == nil:
		m.emit(r, snap, now)
		log.Printf("[CONFIRM] %s confirmed %d x %s for user %s", r.ID, r.Quantity, r.TicketTypeID, r.UserID)
	case errors.Is(err, ErrExpired):
		m.emit(r, snap, now)
	}
	return r, err
}

// Release cancels a live hold. Only the owner or an admin may release.
func (m *Manager) Release(id string, by Requester) (Reservation, error) {
	rec, err := m.lookup(id)
	if err != nil {
		return Reservation{}, err
	}

	now := m.clock.Now()
	r, snap, err := m.locked(rec, func() (shared.TicketType, error) {
		if !by.mayModify(&rec.r) {
			return shared.TicketType{}, ErrForbidden
		}
		if rec.r.State.Terminal() {
			return shared.TicketType{}, ErrAlreadyFinalized
		}
		snap := m.inv.ReleaseHold(rec.r.TicketTypeID, rec.r.Quantity)
		rec.r.State = shared.StateReleased
		rec.r.finalizedAt = now
		return snap, nil
	})
	if errors.Is(err, ErrForbidden) {
		return Reservation{}, err
	}
	if err != nil {
		return r, err
	}

	m.emit(r, snap, now)
	log.Printf("[RELEASE] %s released by %s", r.ID, by.UserID)
	return r, nil
}

// locked runs fn with rec.mu held and returns a copy of the record as fn
// left it. The lock is released even if fn panics.
func (m *Manager) locked(rec *record, fn func() (shared.TicketType, error)) (Reservation, shared.TicketType, error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	snap, err := fn()
	return rec.r, snap, err
}

// Get returns a copy of a reservation.
func (m *Manager) Get(id string) (Reservation, error) {
	rec, err := m.lookup(id)
	if err != nil {
		return Reservation{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.r, nil
}

// HoldTTL reports the lifetime given to new holds.
func (m *Manager) HoldTTL() time.Duration {
	return m.holdTTL
}

func (m *Manager) lookup(id string) (*record, error) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return rec, nil
}

// expireLocked moves a held record to Expired. rec.mu must be held.
func (m *Manager) expireLocked(rec *record, now time.Time) (Reservation, shared.TicketType) {
	snap := m.inv.ReleaseHold(rec.r.TicketTypeID, rec.r.Quantity)
	rec.r.State = shared.StateExpired
	rec.r.finalizedAt = now
	return rec.r, snap
}

func (m *Manager) emit(r Reservation, snap shared.TicketType, now time.Time) {
	inv := snap
	m.events.Publish(shared.ReservationEvent{
		ReservationID: r.ID,
		UserID:        r.UserID,
		TicketTypeID:  r.TicketTypeID,
		EventID:       r.EventID,
		Quantity:      r.Quantity,
		NewState:      r.State,
		Timestamp:     now,
		Inventory:     &inv,
	})
}
