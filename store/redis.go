// Package store keeps a Redis copy of ticket-type counters. It is a read
// model and restart seed, never the authority: the in-memory ledger
// decides every hold.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"event-ticketing/ledger"
	"event-ticketing/shared"
)

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// RedisInventory stores one JSON-encoded shared.TicketType per hash field.
type RedisInventory struct {
	client *redis.Client
	key    string
}

func NewRedisInventory(client *redis.Client) *RedisInventory {
	return &RedisInventory{client: client, key: shared.RedisKeyTicketTypes}
}

// Save writes the counters of one ticket type.
func (s *RedisInventory) Save(ctx context.Context, tt shared.TicketType) error {
	data, err := json.Marshal(tt)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.key, tt.ID, data).Err()
}

// Load reads every stored ticket type. Undecodable entries are logged and
// skipped.
func (s *RedisInventory) Load(ctx context.Context) ([]shared.TicketType, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}

	out := make([]shared.TicketType, 0, len(fields))
	for id, raw := range fields {
		var tt shared.TicketType
		if err := json.Unmarshal([]byte(raw), &tt); err != nil {
			log.Printf("[STORE] Error unmarshaling ticket type %s: %v", id, err)
			continue
		}
		out = append(out, tt)
	}
	return out, nil
}

// Seed registers every stored ticket type in l with its recorded sales.
// Holds are not carried across restarts.
func (s *RedisInventory) Seed(ctx context.Context, l *ledger.Ledger) (int, error) {
	types, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	seeded := 0
	for _, tt := range types {
		if err := l.Restore(tt.ID, tt.EventID, tt.Capacity, tt.Sold); err != nil {
			log.Printf("[STORE] Skipping ticket type %s: %v", tt.ID, err)
			continue
		}
		seeded++
	}
	return seeded, nil
}

// CounterSource supplies the authoritative counters of a ticket type.
type CounterSource interface {
	Get(id string) (shared.TicketType, error)
}

// Mirror copies ticket-type counters into Redis on its own goroutine so
// that publishers never wait on the network. Events only mark a ticket type
// dirty; the counters written are always re-read from the source, so the
// order in which events arrive does not matter.
type Mirror struct {
	store   *RedisInventory
	source  CounterSource
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	wake    chan struct{}
}

func NewMirror(store *RedisInventory, source CounterSource) *Mirror {
	return &Mirror{
		store:   store,
		source:  source,
		timeout: 2 * time.Second,
		pending: make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Handle is an eventbus.Handler.
func (m *Mirror) Handle(evt shared.ReservationEvent) {
	if evt.TicketTypeID == "" {
		return
	}
	m.mu.Lock()
	m.pending[evt.TicketTypeID] = struct{}{}
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Run writes dirty ticket types until ctx is done, then makes a final pass.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.Flush(context.Background())
			return
		case <-m.wake:
			m.Flush(ctx)
		}
	}
}

// Flush writes the current counters of every dirty ticket type. Ids whose
// write fails stay dirty for the next pass.
func (m *Mirror) Flush(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	m.pending = make(map[string]struct{})
	m.mu.Unlock()

	for _, id := range ids {
		tt, err := m.source.Get(id)
		if err != nil {
			log.Printf("[STORE] Not mirroring %s: %v", id, err)
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, m.timeout)
		err = m.store.Save(wctx, tt)
		cancel()
		if err != nil {
			log.Printf("[STORE] Failed to mirror %s: %v", id, err)
			m.mu.Lock()
			m.pending[id] = struct{}{}
			m.mu.Unlock()
		}
	}
}
