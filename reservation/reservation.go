package reservation

import (
	"errors"
	"time"

	"event-ticketing/ledger"
	"event-ticketing/shared"
)

var (
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrMissingUser        = errors.New("user id required")
	ErrNotFound           = errors.New("reservation not found")
	ErrAlreadyFinalized   = errors.New("reservation already finalized")
	ErrExpired            = errors.New("reservation expired")
	ErrForbidden          = errors.New("not allowed to modify this reservation")
	ErrInventoryExhausted = ledger.ErrInventoryExhausted
	ErrUnknownTicketType  = ledger.ErrUnknownTicketType
)

// Reservation is a time-bounded hold on some quantity of one ticket type.
type Reservation struct {
	ID           string                  `json:"id"`
	UserID       string                  `json:"userId"`
	TicketTypeID string                  `json:"ticketTypeId"`
	EventID      string                  `json:"eventId"`
	Quantity     int                     `json:"quantity"`
	State        shared.ReservationState `json:"state"`
	CreatedAt    time.Time               `json:"createdAt"`
	ExpiresAt    time.Time               `json:"expiresAt"`
	ConfirmedAt  *time.Time              `json:"confirmedAt,omitempty"`

	finalizedAt time.Time
}

// Requester identifies who is asking to release a reservation.
type Requester struct {
	UserID string
	Role   shared.Role
}

func (q Requester) mayModify(r *Reservation) bool {
	return q.Role == shared.RoleAdmin || (q.UserID != "" && q.UserID == r.UserID)
}

// Inventory is the subset of the ledger the manager drives.
type Inventory interface {
	TryHold(ticketTypeID string, qty int) (shared.TicketType, error)
	ConfirmHold(ticketTypeID string, qty int) shared.TicketType
	ReleaseHold(ticketTypeID string, qty int) shared.TicketType
}

var _ Inventory = (*ledger.Ledger)(nil)
