package hub

import "event-ticketing/shared"

// HandleReservationEvent fans a reservation state change out to the
// rooms that care about it. It has the eventbus.Handler signature.
func (h *Hub) HandleReservationEvent(evt shared.ReservationEvent) {
	h.NotifyUser(evt.UserID, shared.MessageTypeReservationUpdated, evt)

	if evt.EventID != "" && evt.Inventory != nil {
		h.NotifyEventRoom(evt.EventID, shared.MessageTypeInventoryUpdated, evt.Inventory)
	}

	switch evt.NewState {
	case shared.StateConfirmed:
		h.NotifyOrganizers(shared.MessageTypeTicketSold, evt)
	case shared.StateExpired:
		h.NotifyAdmins(shared.MessageTypeHoldExpired, evt)
	}
}
