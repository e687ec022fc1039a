package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-ticketing/ledger"
	"event-ticketing/shared"
)

func newStore(t *testing.T) (*RedisInventory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewRedisInventory(client), mr
}

func TestSaveLoad(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	tt := shared.TicketType{ID: "ga", EventID: "e1", Capacity: 10, Held: 1, Sold: 4, Available: 5}
	require.NoError(t, s.Save(ctx, tt))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []shared.TicketType{tt}, got)
}

func TestLoadSkipsGarbage(t *testing.T) {
	s, mr := newStore(t)
	mr.HSet(shared.RedisKeyTicketTypes, "broken", "{not json")
	require.NoError(t, s.Save(context.Background(), shared.TicketType{ID: "ga", EventID: "e1", Capacity: 1}))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ga", got[0].ID)
}

func TestSeedRestoresSalesButNotHolds(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, shared.TicketType{ID: "ga", EventID: "e1", Capacity: 10, Held: 3, Sold: 4}))
	require.NoError(t, s.Save(ctx, shared.TicketType{ID: "bad", EventID: "e1", Capacity: 0}))

	l := ledger.New()
	n, err := s.Seed(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tt, err := l.Get("ga")
	require.NoError(t, err)
	assert.Equal(t, 4, tt.Sold)
	assert.Zero(t, tt.Held)
	assert.Equal(t, 6, tt.Available)
}

func TestNewRedisClientFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), addr, "", 0)
	assert.Error(t, err)
}

func soldOut(t *testing.T) *ledger.Ledger {
	t.Helper()
	l := ledger.New()
	require.NoError(t, l.Register("ga", "e1", 2))
	_, err := l.TryHold("ga", 2)
	require.NoError(t, err)
	l.ConfirmHold("ga", 1)
	l.ConfirmHold("ga", 1)
	return l
}

func TestMirrorWritesCurrentCounters(t *testing.T) {
	s, _ := newStore(t)
	l := soldOut(t)
	m := NewMirror(s, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Handle(shared.ReservationEvent{TicketTypeID: "ga"})

	require.Eventually(t, func() bool {
		got, err := s.Load(context.Background())
		return err == nil && len(got) == 1 && got[0].Sold == 2
	}, time.Second, 10*time.Millisecond)
}

func TestMirrorIgnoresEventOrder(t *testing.T) {
	s, _ := newStore(t)
	l := soldOut(t)
	m := NewMirror(s, l)
	ctx := context.Background()

	// The event for the second sale arrives before the one for the first.
	m.Handle(shared.ReservationEvent{TicketTypeID: "ga", NewState: shared.StateConfirmed,
		Inventory: &shared.TicketType{ID: "ga", EventID: "e1", Capacity: 2, Sold: 2}})
	m.Handle(shared.ReservationEvent{TicketTypeID: "ga", NewState: shared.StateConfirmed,
		Inventory: &shared.TicketType{ID: "ga", EventID: "e1", Capacity: 2, Sold: 1, Available: 1}})
	m.Flush(ctx)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Sold)

	restarted := ledger.New()
	_, err = s.Seed(ctx, restarted)
	require.NoError(t, err)
	_, err = restarted.TryHold("ga", 1)
	assert.ErrorIs(t, err, ledger.ErrInventoryExhausted)
}

func TestMirrorCoalescesAndRetries(t *testing.T) {
	s, mr := newStore(t)
	l := soldOut(t)
	m := NewMirror(s, l)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		m.Handle(shared.ReservationEvent{TicketTypeID: "ga"})
	}
	m.Handle(shared.ReservationEvent{TicketTypeID: "unknown"})
	assert.Len(t, m.pending, 2)

	mr.SetError("LOADING")
	m.Flush(ctx)
	assert.Contains(t, m.pending, "ga")
	assert.NotContains(t, m.pending, "unknown")

	mr.SetError("")
	m.Flush(ctx)
	assert.Empty(t, m.pending)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Sold)
}

func TestMirrorFlushesOnShutdown(t *testing.T) {
	s, _ := newStore(t)
	m := NewMirror(s, soldOut(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Handle(shared.ReservationEvent{TicketTypeID: "ga"})
	<-m.wake
	m.Run(ctx)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
