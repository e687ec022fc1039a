package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-ticketing/auth"
	"event-ticketing/clock"
	"event-ticketing/ledger"
	"event-ticketing/reservation"
	"event-ticketing/shared"
)

const testSecret = "test-secret"

var start = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu    sync.Mutex
	saved map[string]shared.TicketType
	err   error
}

func (m *memStore) Save(_ context.Context, tt shared.TicketType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved[tt.ID] = tt
	return nil
}

type fixture struct {
	router *gin.Engine
	clk    *clock.Manual
	ledger *ledger.Ledger
	store  *memStore
	jwt    *auth.JWT
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l := ledger.New()
	require.NoError(t, l.Register("ga", "e1", 2))
	require.NoError(t, l.Register("vip", "e1", 1))
	require.NoError(t, l.Register("floor", "e2", 5))

	clk := clock.NewManual(start)
	f := &fixture{
		clk:    clk,
		ledger: l,
		store:  &memStore{saved: map[string]shared.TicketType{}},
		jwt:    auth.NewJWT(testSecret),
	}
	s := &server{
		ledger: l,
		holds:  reservation.NewManager(l, nil, clk, reservation.WithHoldTTL(10*time.Minute)),
		store:  f.store,
		auth:   f.jwt,
	}
	f.router = setupRoutes(s)
	return f
}

func (f *fixture) token(t *testing.T, user string, role shared.Role) string {
	t.Helper()
	tok, err := f.jwt.Issue(auth.Identity{UserID: user, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func (f *fixture) hold(t *testing.T, token, ticketType string, qty int) reservation.Reservation {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/holds", token, holdRequest{TicketTypeID: ticketType, Quantity: qty})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[reservation.Reservation](t, w)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "booking-service")
}

func TestAPIRequiresToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/ticket-types", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/ticket-types", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other := auth.NewJWT("another-secret")
	tok, err := other.Issue(auth.Identity{UserID: "alice", Role: shared.RoleUser}, time.Hour)
	require.NoError(t, err)
	w = f.do(t, http.MethodGet, "/api/ticket-types", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateHold(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "alice", shared.RoleUser)

	r := f.hold(t, alice, "ga", 2)
	assert.Equal(t, "alice", r.UserID)
	assert.Equal(t, "e1", r.EventID)
	assert.Equal(t, shared.StateHeld, r.State)
	assert.Equal(t, start.Add(10*time.Minute), r.ExpiresAt.UTC())

	tt, err := f.ledger.Get("ga")
	require.NoError(t, err)
	assert.Equal(t, 2, tt.Held)

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"exhausted", holdRequest{TicketTypeID: "ga", Quantity: 1}, http.StatusConflict},
		{"unknown type", holdRequest{TicketTypeID: "nope", Quantity: 1}, http.StatusNotFound},
		{"zero quantity", holdRequest{TicketTypeID: "vip", Quantity: 0}, http.StatusBadRequest},
		{"missing type", holdRequest{Quantity: 1}, http.StatusBadRequest},
		{"not json", "{", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/holds", alice, tc.body)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}
}

func TestConfirmHold(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "alice", shared.RoleUser)
	bob := f.token(t, "bob", shared.RoleUser)

	r := f.hold(t, alice, "ga", 1)

	w := f.do(t, http.MethodPost, "/api/holds/"+r.ID+"/confirm", bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/holds/"+r.ID+"/confirm", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeBody[reservation.Reservation](t, w)
	assert.Equal(t, shared.StateConfirmed, got.State)
	require.NotNil(t, got.ConfirmedAt)

	w = f.do(t, http.MethodPost, "/api/holds/"+r.ID+"/confirm", alice, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/api/holds/missing/confirm", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	tt, err := f.ledger.Get("ga")
	require.NoError(t, err)
	assert.Equal(t, 1, tt.Sold)
	assert.Zero(t, tt.Held)
}

func TestConfirmExpiredHold(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "alice", shared.RoleUser)

	r := f.hold(t, alice, "vip", 1)
	f.clk.Advance(10 * time.Minute)

	w := f.do(t, http.MethodPost, "/api/holds/"+r.ID+"/confirm", alice, nil)
	assert.Equal(t, http.StatusGone, w.Code)

	w = f.do(t, http.MethodGet, "/api/holds/"+r.ID, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, shared.StateExpired, decodeBody[reservation.Reservation](t, w).State)

	tt, err := f.ledger.Get("vip")
	require.NoError(t, err)
	assert.Equal(t, 1, tt.Available)
}

func TestReleaseHold(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "alice", shared.RoleUser)
	bob := f.token(t, "bob", shared.RoleUser)
	ada := f.token(t, "ada", shared.RoleAdmin)

	r := f.hold(t, alice, "ga", 1)

	w := f.do(t, http.MethodPost, "/api/holds/"+r.ID+"/release", bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/holds/"+r.ID+"/release", ada, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, shared.StateReleased, decodeBody[reservation.Reservation](t, w).State)

	w = f.do(t, http.MethodPost, "/api/holds/"+r.ID+"/release", alice, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/api/holds/missing/release", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetHoldVisibility(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "alice", shared.RoleUser)
	r := f.hold(t, alice, "ga", 1)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/holds/"+r.ID, alice, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/holds/"+r.ID, f.token(t, "ada", shared.RoleAdmin), nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/holds/"+r.ID, f.token(t, "bob", shared.RoleUser), nil).Code)
}

func TestTicketTypeQueries(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "alice", shared.RoleUser)
	f.hold(t, alice, "ga", 1)

	w := f.do(t, http.MethodGet, "/api/ticket-types", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decodeBody[[]shared.TicketType](t, w)
	require.Len(t, all, 3)
	assert.Equal(t, "floor", all[0].ID)

	w = f.do(t, http.MethodGet, "/api/ticket-types/ga", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, shared.TicketType{ID: "ga", EventID: "e1", Capacity: 2, Held: 1, Available: 1}, decodeBody[shared.TicketType](t, w))

	w = f.do(t, http.MethodGet, "/api/ticket-types/nope", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/events/e1/inventory", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeBody[shared.InventorySnapshot](t, w)
	assert.Equal(t, "e1", snap.EventID)
	require.Len(t, snap.TicketTypes, 2)
	assert.Equal(t, "ga", snap.TicketTypes[0].ID)
	assert.Equal(t, "vip", snap.TicketTypes[1].ID)
}

func TestRegisterTicketType(t *testing.T) {
	f := newFixture(t)
	olga := f.token(t, "olga", shared.RoleOrganizer)

	w := f.do(t, http.MethodPost, "/api/ticket-types", f.token(t, "alice", shared.RoleUser),
		registerRequest{ID: "balcony", EventID: "e3", Capacity: 10})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/ticket-types", olga, registerRequest{ID: "balcony", EventID: "e3", Capacity: 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 10, decodeBody[shared.TicketType](t, w).Available)
	assert.Contains(t, f.store.saved, "balcony")

	tests := []struct {
		name string
		req  registerRequest
		code int
	}{
		{"same values", registerRequest{ID: "balcony", EventID: "e3", Capacity: 10}, http.StatusCreated},
		{"capacity change", registerRequest{ID: "balcony", EventID: "e3", Capacity: 20}, http.StatusConflict},
		{"zero capacity", registerRequest{ID: "pit", EventID: "e3", Capacity: 0}, http.StatusBadRequest},
		{"missing event", registerRequest{ID: "pit", Capacity: 5}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/ticket-types", olga, tc.req)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}
}

func TestRegisterSurvivesStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("redis down")

	w := f.do(t, http.MethodPost, "/api/ticket-types", f.token(t, "ada", shared.RoleAdmin),
		registerRequest{ID: "pit", EventID: "e3", Capacity: 5})
	assert.Equal(t, http.StatusCreated, w.Code)

	_, err := f.ledger.Get("pit")
	assert.NoError(t, err)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(reservation.ErrNotFound))
	assert.Equal(t, http.StatusGone, statusFor(reservation.ErrExpired))
	assert.Equal(t, http.StatusConflict, statusFor(reservation.ErrInventoryExhausted))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
