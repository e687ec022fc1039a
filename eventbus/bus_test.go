package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"event-ticketing/shared"
)

func sampleEvent(state shared.ReservationState) shared.ReservationEvent {
	return shared.ReservationEvent{
		ReservationID: "r1",
		UserID:        "u1",
		TicketTypeID:  "ga",
		EventID:       "e1",
		Quantity:      2,
		NewState:      state,
		Timestamp:     time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBusDeliversToAllHandlers(t *testing.T) {
	b := New()
	var a, c []shared.ReservationEvent
	b.Subscribe(func(evt shared.ReservationEvent) { a = append(a, evt) })
	b.Subscribe(func(evt shared.ReservationEvent) { c = append(c, evt) })

	evt := sampleEvent(shared.StateHeld)
	b.Publish(evt)

	assert.Equal(t, []shared.ReservationEvent{evt}, a)
	assert.Equal(t, []shared.ReservationEvent{evt}, c)
}

func TestBusUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	unsubscribe := b.Subscribe(func(shared.ReservationEvent) { calls++ })
	assert.Equal(t, 1, b.Len())

	unsubscribe()
	unsubscribe()
	b.Publish(sampleEvent(shared.StateHeld))

	assert.Zero(t, calls)
	assert.Zero(t, b.Len())
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	b := New()
	delivered := false
	b.Subscribe(func(shared.ReservationEvent) { panic("boom") })
	b.Subscribe(func(shared.ReservationEvent) { delivered = true })

	assert.NotPanics(t, func() { b.Publish(sampleEvent(shared.StateExpired)) })
	assert.True(t, delivered)
}
