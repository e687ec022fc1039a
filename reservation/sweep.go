package reservation

import (
	"container/heap"
	"context"
	"log"
	"time"

	"event-ticketing/shared"
)

type expiryEntry struct {
	id        string
	expiresAt time.Time
}

// expiryIndex is a min-heap of held reservations ordered by expiry.
// Entries are not removed when a hold is confirmed or released; the
// sweep skips them when it finds the record already finalized.
type expiryIndex []expiryEntry

func (x expiryIndex) Len() int           { return len(x) }
func (x expiryIndex) Less(i, j int) bool { return x[i].expiresAt.Before(x[j].expiresAt) }
func (x expiryIndex) Swap(i, j int)      { x[i], x[j] = x[j], x[i] }

func (x *expiryIndex) Push(v any) { *x = append(*x, v.(expiryEntry)) }

func (x *expiryIndex) Pop() any {
	old := *x
	n := len(old)
	e := old[n-1]
	*x = old[:n-1]
	return e
}

func (x *expiryIndex) add(id string, expiresAt time.Time) {
	heap.Push(x, expiryEntry{id: id, expiresAt: expiresAt})
}

// popDue removes and returns the earliest entry if it is due at now.
func (x *expiryIndex) popDue(now time.Time) (expiryEntry, bool) {
	if x.Len() == 0 || (*x)[0].expiresAt.After(now) {
		return expiryEntry{}, false
	}
	return heap.Pop(x).(expiryEntry), true
}

// Run sweeps expired holds every sweep interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	log.Printf("[SWEEP] started, checking every %s", m.sweepInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("[SWEEP] stopped")
			return
		case <-ticker.C:
			if n := m.SweepExpired(m.clock.Now()); n > 0 {
				log.Printf("[SWEEP] Released %d expired holds", n)
			}
		}
	}
}

// SweepExpired expires every held reservation with expiresAt <= now,
// releases its inventory and emits one event each. It also forgets
// finalized reservations older than the retention window. It returns
// the number of reservations expired.
func (m *Manager) SweepExpired(now time.Time) int {
	expired := 0
	for {
		m.idxMu.Lock()
		due, ok := m.expiry.popDue(now)
		m.idxMu.Unlock()
		if !ok {
			break
		}
		if m.expireOne(due.id, now) {
			expired++
		}
	}
	m.prune(now)
	return expired
}

func (m *Manager) expireOne(id string, now time.Time) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] sweep: expiring %s failed: %v", id, r)
			done = false
		}
	}()

	rec, err := m.lookup(id)
	if err != nil {
		log.Printf("[WARN] sweep: %v", err)
		return false
	}

	r, snap, ok := func() (Reservation, shared.TicketType, bool) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		if rec.r.State.Terminal() || now.Before(rec.r.ExpiresAt) {
			return Reservation{}, shared.TicketType{}, false
		}
		r, snap := m.expireLocked(rec, now)
		return r, snap, true
	}()
	if !ok {
		return false
	}

	m.emit(r, snap, now)
	log.Printf("[SWEEP] Auto-expired %s (%d x %s, was held by %s)", r.ID, r.Quantity, r.TicketTypeID, r.UserID)
	return true
}

func (m *Manager) prune(now time.Time) {
	cutoff := now.Add(-m.retention)

	m.mu.RLock()
	var stale []string
	for id, rec := range m.records {
		rec.mu.Lock()
		if rec.r.State.Terminal() && !rec.r.finalizedAt.After(cutoff) {
			stale = append(stale, id)
		}
		rec.mu.Unlock()
	}
	m.mu.RUnlock()

	if len(stale) == 0 {
		return
	}
	m.mu.Lock()
	for _, id := range stale {
		delete(m.records, id)
	}
	m.mu.Unlock()
}
