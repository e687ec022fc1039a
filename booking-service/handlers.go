package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"event-ticketing/auth"
	"event-ticketing/ledger"
	"event-ticketing/reservation"
	"event-ticketing/shared"
)

// ticketTypeStore persists registered ticket types so they survive a
// restart. Nil disables persistence.
type ticketTypeStore interface {
	Save(ctx context.Context, tt shared.TicketType) error
}

type server struct {
	ledger *ledger.Ledger
	holds  *reservation.Manager
	store  ticketTypeStore
	auth   auth.Authenticator
}

type holdRequest struct {
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
}

type registerRequest struct {
	ID       string `json:"id"`
	EventID  string `json:"event_id"`
	Capacity int    `json:"capacity"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reservation.ErrNotFound), errors.Is(err, reservation.ErrUnknownTicketType):
		return http.StatusNotFound
	case errors.Is(err, reservation.ErrInvalidQuantity), errors.Is(err, reservation.ErrMissingUser),
		errors.Is(err, ledger.ErrInvalidQuantity), errors.Is(err, ledger.ErrInvalidCapacity):
		return http.StatusBadRequest
	case errors.Is(err, reservation.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, reservation.ErrAlreadyFinalized), errors.Is(err, reservation.ErrInventoryExhausted),
		errors.Is(err, ledger.ErrCapacityImmutable):
		return http.StatusConflict
	case errors.Is(err, reservation.ErrExpired):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, shared.ErrorResponse{Error: err.Error()})
}

func (s *server) handleCreateHold(c *gin.Context) {
	var req holdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, shared.ErrorResponse{Error: "Invalid request"})
		return
	}
	if req.TicketTypeID == "" {
		c.JSON(http.StatusBadRequest, shared.ErrorResponse{Error: "ticket_type_id is required"})
		return
	}

	id := identityFrom(c)
	r, err := s.holds.CreateHold(id.UserID, req.TicketTypeID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	log.Printf("[HOLD] %s held %d x %s (%s)", id.UserID, r.Quantity, r.TicketTypeID, r.ID)
	c.JSON(http.StatusCreated, r)
}

// ownedHold loads the reservation named in the path and checks that the
// caller owns it or is an admin. It writes the response on failure.
func (s *server) ownedHold(c *gin.Context) (reservation.Reservation, bool) {
	r, err := s.holds.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return r, false
	}
	id := identityFrom(c)
	if id.Role != shared.RoleAdmin && id.UserID != r.UserID {
		writeError(c, reservation.ErrForbidden)
		return r, false
	}
	return r, true
}

func (s *server) handleGetHold(c *gin.Context) {
	r, ok := s.ownedHold(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *server) handleConfirmHold(c *gin.Context) {
	if _, ok := s.ownedHold(c); !ok {
		return
	}
	r, err := s.holds.Confirm(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	log.Printf("[HOLD] Confirmed %s for %s", r.ID, r.UserID)
	c.JSON(http.StatusOK, r)
}

func (s *server) handleReleaseHold(c *gin.Context) {
	id := identityFrom(c)
	r, err := s.holds.Release(c.Param("id"), reservation.Requester{UserID: id.UserID, Role: id.Role})
	if err != nil {
		writeError(c, err)
		return
	}
	log.Printf("[HOLD] Released %s by %s", r.ID, id.UserID)
	c.JSON(http.StatusOK, r)
}

func (s *server) handleListTicketTypes(c *gin.Context) {
	c.JSON(http.StatusOK, s.ledger.Snapshot())
}

func (s *server) handleGetTicketType(c *gin.Context) {
	tt, err := s.ledger.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tt)
}

func (s *server) handleEventInventory(c *gin.Context) {
	eventID := c.Param("eventId")
	c.JSON(http.StatusOK, shared.InventorySnapshot{EventID: eventID, TicketTypes: s.ledger.ByEvent(eventID)})
}

func (s *server) handleRegisterTicketType(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, shared.ErrorResponse{Error: "Invalid request"})
		return
	}
	if req.ID == "" || req.EventID == "" {
		c.JSON(http.StatusBadRequest, shared.ErrorResponse{Error: "id and event_id are required"})
		return
	}

	if err := s.ledger.Register(req.ID, req.EventID, req.Capacity); err != nil {
		writeError(c, err)
		return
	}
	tt, err := s.ledger.Get(req.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	if s.store != nil {
		if err := s.store.Save(c.Request.Context(), tt); err != nil {
			log.Printf("[STORE] Failed to persist ticket type %s: %v", tt.ID, err)
		}
	}
	log.Printf("[INVENTORY] Registered %s for event %s with capacity %d", tt.ID, tt.EventID, tt.Capacity)
	c.JSON(http.StatusCreated, tt)
}
