package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-ticketing/shared"
)

func reservationEvent(state shared.ReservationState) shared.ReservationEvent {
	return shared.ReservationEvent{
		ReservationID: "r1",
		UserID:        "alice",
		TicketTypeID:  "ga",
		EventID:       "e1",
		Quantity:      2,
		NewState:      state,
		Timestamp:     now,
		Inventory:     &shared.TicketType{ID: "ga", EventID: "e1", Capacity: 10, Held: 2, Available: 8},
	}
}

func TestReservationEventRouting(t *testing.T) {
	h := newTestHub(t)
	owner := connect(t, h, "alice")
	watcher := connect(t, h, "bob")
	org := connect(t, h, "olga")
	admin := connect(t, h, "ada")
	h.rooms.Join(watcher.id, "event_e1")

	h.HandleReservationEvent(reservationEvent(shared.StateHeld))

	msg := next(t, owner)
	require.Equal(t, shared.MessageTypeReservationUpdated, msg.Type)
	evt := decode[shared.ReservationEvent](t, msg)
	assert.Equal(t, "r1", evt.ReservationID)
	assert.Equal(t, shared.StateHeld, evt.NewState)

	msg = next(t, watcher)
	require.Equal(t, shared.MessageTypeInventoryUpdated, msg.Type)
	assert.Equal(t, 8, decode[shared.TicketType](t, msg).Available)

	expectNone(t, org)
	expectNone(t, admin)
}

func TestConfirmedEventReachesOrganizers(t *testing.T) {
	h := newTestHub(t)
	org := connect(t, h, "olga")
	admin := connect(t, h, "ada")

	h.HandleReservationEvent(reservationEvent(shared.StateConfirmed))
	assert.Equal(t, shared.MessageTypeTicketSold, next(t, org).Type)
	expectNone(t, admin)
}

func TestExpiredEventReachesAdmins(t *testing.T) {
	h := newTestHub(t)
	org := connect(t, h, "olga")
	admin := connect(t, h, "ada")

	h.HandleReservationEvent(reservationEvent(shared.StateExpired))
	assert.Equal(t, shared.MessageTypeHoldExpired, next(t, admin).Type)
	expectNone(t, org)
}
