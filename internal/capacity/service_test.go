package capacity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketd/internal/apperr"
	"ticketd/internal/models"
)

// memStore implements EventStore with the same guarantees the SQL store
// gives: conditional decrement and at-most-once release per booking id.
type memStore struct {
	mu        sync.Mutex
	capacity  map[int64]int
	available map[int64]int
	released  map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		capacity:  make(map[int64]int),
		available: make(map[int64]int),
		released:  make(map[int64]bool),
	}
}

func (m *memStore) addEvent(id int64, capacity int) {
	m.capacity[id] = capacity
	m.available[id] = capacity
}

func (m *memStore) ReserveTickets(ctx context.Context, eventID int64, quantity int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	avail, ok := m.available[eventID]
	if !ok {
		return 0, apperr.ErrEventNotFound
	}
	if avail < quantity {
		return 0, apperr.ErrInsufficientTickets
	}
	m.available[eventID] = avail - quantity
	return m.available[eventID], nil
}

func (m *memStore) ReleaseTickets(ctx context.Context, eventID int64, quantity int, bookingID *int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.available[eventID]; !ok {
		return false, apperr.ErrEventNotFound
	}
	if bookingID != nil {
		if m.released[*bookingID] {
			return false, nil
		}
		m.released[*bookingID] = true
	}
	m.available[eventID] += quantity
	if m.available[eventID] > m.capacity[eventID] {
		m.available[eventID] = m.capacity[eventID]
	}
	return true, nil
}

func TestReserveDecrementsAvailability(t *testing.T) {
	store := newMemStore()
	store.addEvent(1, 10)
	svc := NewService(store, nil)

	reply, err := svc.Reserve(context.Background(), &models.ReserveCapacityRequest{EventID: 1, Quantity: 3})
	require.NoError(t, err)
	assert.True(t, reply.Success)
	assert.Equal(t, 7, reply.Remaining)
}

func TestReserveFailsWithoutSideEffects(t *testing.T) {
	store := newMemStore()
	store.addEvent(1, 2)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, &models.ReserveCapacityRequest{EventID: 1, Quantity: 3})
	assert.True(t, errors.Is(err, apperr.ErrInsufficientTickets))
	assert.Equal(t, 2, store.available[1], "failed reserve must not change availability")

	_, err = svc.Reserve(ctx, &models.ReserveCapacityRequest{EventID: 99, Quantity: 1})
	assert.True(t, errors.Is(err, apperr.ErrEventNotFound))

	_, err = svc.Reserve(ctx, &models.ReserveCapacityRequest{EventID: 1, Quantity: 0})
	assert.True(t, apperr.IsValidation(err))
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	store := newMemStore()
	store.addEvent(1, 10)
	svc := NewService(store, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), &models.ReserveCapacityRequest{EventID: 1, Quantity: 1})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, apperr.ErrInsufficientTickets) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded, "exactly capacity reserves may succeed")
	assert.Equal(t, 0, store.available[1])
}

func TestReleaseRoundTrip(t *testing.T) {
	store := newMemStore()
	store.addEvent(1, 10)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, &models.ReserveCapacityRequest{EventID: 1, Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, 6, store.available[1])

	bookingID := int64(42)
	reply, err := svc.Release(ctx, &models.ReleaseCapacityRequest{EventID: 1, Quantity: 4, BookingID: &bookingID})
	require.NoError(t, err)
	assert.True(t, reply.Success)
	assert.Equal(t, 10, store.available[1])
}

func TestDuplicateReleaseIsAbsorbed(t *testing.T) {
	store := newMemStore()
	store.addEvent(1, 10)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, &models.ReserveCapacityRequest{EventID: 1, Quantity: 4})
	require.NoError(t, err)

	bookingID := int64(42)
	req := &models.ReleaseCapacityRequest{EventID: 1, Quantity: 4, BookingID: &bookingID}

	reply, err := svc.Release(ctx, req)
	require.NoError(t, err)
	assert.True(t, reply.Success)

	// A retried release reports success but credits nothing.
	reply, err = svc.Release(ctx, req)
	require.NoError(t, err)
	assert.True(t, reply.Success)
	assert.Equal(t, 10, store.available[1], "retry must not double-credit")
}
