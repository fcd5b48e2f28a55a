// Package idempotency deduplicates event deliveries per consumer. A delivery
// first claims the event with a short lease; the claim becomes a long lived
// completion mark only after the handler succeeds.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	markInFlight = "processing"
	markDone     = "done"

	// DefaultLease bounds how long a crashed handler blocks redelivery.
	DefaultLease = 5 * time.Minute
)

// ErrInFlight means another delivery of the same event is being handled.
// Callers nack so the broker redelivers after the lease lapses.
var ErrInFlight = errors.New("event is being processed by another delivery")

// Store is the Redis surface the manager needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type Manager struct {
	store Store
	ttl   time.Duration
	lease time.Duration
}

// NewManager keeps completion marks for ttl. A zero ttl keeps them forever.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	lease := DefaultLease
	if ttl > 0 && ttl < lease {
		lease = ttl
	}
	return &Manager{store: store, ttl: ttl, lease: lease}, nil
}

// Once runs fn for the first delivery of eventID to consumer. skipped is true
// for deliveries of an already completed event. A failing fn releases the
// claim so a redelivery can retry.
func (m *Manager) Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (skipped bool, err error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}

	claimed, err := m.store.SetNX(ctx, key, markInFlight, m.lease)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		return m.existing(ctx, key)
	}

	if err := fn(ctx); err != nil {
		if relErr := m.store.Del(ctx, key); relErr != nil {
			return false, errors.Join(err, fmt.Errorf("release claim: %w", relErr))
		}
		return false, err
	}
	if err := m.store.Set(ctx, key, markDone, m.ttl); err != nil {
		return false, fmt.Errorf("mark %s done: %w", key, err)
	}
	return false, nil
}

func (m *Manager) existing(ctx context.Context, key string) (bool, error) {
	mark, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// claim lapsed between SetNX and Get
		return false, ErrInFlight
	case err != nil:
		return false, fmt.Errorf("read %s: %w", key, err)
	case mark == markInFlight:
		return false, ErrInFlight
	}
	return true, nil
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
