package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketd/internal/apperr"
)

// fakeRedis implements the Client subset in memory: SetNX plus the
// compare-and-delete release script.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.data[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, held := f.data[keys[0]]
	if held && current == args[0].(string) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

// expire simulates the TTL firing.
func (f *fakeRedis) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
}

func TestAcquireRelease(t *testing.T) {
	rdb := newFakeRedis()
	m := NewManager(rdb)
	ctx := context.Background()

	token, ok, err := m.Acquire(ctx, "event:1", time.Second, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	released, err := m.Release(ctx, "event:1", token)
	require.NoError(t, err)
	assert.True(t, released)

	// Released lock can be taken again immediately.
	_, ok, err = m.Acquire(ctx, "event:1", time.Second, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireContended(t *testing.T) {
	rdb := newFakeRedis()
	m := NewManager(rdb)
	m.retryBase = time.Millisecond
	m.retryJitter = time.Millisecond
	ctx := context.Background()

	_, ok, err := m.Acquire(ctx, "event:1", time.Second, 0)
	require.NoError(t, err)
	require.True(t, ok)

	token, ok, err := m.Acquire(ctx, "event:1", time.Second, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, token)

	// Locks on other scopes are unaffected.
	_, ok, err = m.Acquire(ctx, "event:2", time.Second, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseWrongTokenKeepsLock(t *testing.T) {
	rdb := newFakeRedis()
	m := NewManager(rdb)
	ctx := context.Background()

	token, ok, err := m.Acquire(ctx, "booking:7", time.Second, 0)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := m.Release(ctx, "booking:7", "not-the-owner")
	require.NoError(t, err)
	assert.False(t, released)

	// Still held: a fresh acquire must fail.
	_, ok, err = m.Acquire(ctx, "booking:7", time.Second, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	released, err = m.Release(ctx, "booking:7", token)
	require.NoError(t, err)
	assert.True(t, released)
}

func TestReleaseAfterExpiryDoesNotTouchNewOwner(t *testing.T) {
	rdb := newFakeRedis()
	m := NewManager(rdb)
	ctx := context.Background()

	oldToken, ok, err := m.Acquire(ctx, "event:1", time.Second, 0)
	require.NoError(t, err)
	require.True(t, ok)

	// TTL fires while the first holder is still working; a second holder
	// takes over.
	rdb.expire("lock:event:1")
	newToken, ok, err := m.Acquire(ctx, "event:1", time.Second, 0)
	require.NoError(t, err)
	require.True(t, ok)

	// The stale holder's release is a no-op.
	released, err := m.Release(ctx, "event:1", oldToken)
	require.NoError(t, err)
	assert.False(t, released)

	released, err = m.Release(ctx, "event:1", newToken)
	require.NoError(t, err)
	assert.True(t, released)
}

func TestWithLock(t *testing.T) {
	rdb := newFakeRedis()
	m := NewManager(rdb)
	ctx := context.Background()

	ran := false
	err := m.WithLock(ctx, "event:1", time.Second, 0, func(ctx context.Context) error {
		ran = true
		// The lock is held while fn runs.
		_, ok, err := m.Acquire(ctx, "event:1", time.Second, 0)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	// Released after fn returns.
	_, ok, err := m.Acquire(ctx, "event:1", time.Second, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithLockContended(t *testing.T) {
	rdb := newFakeRedis()
	m := NewManager(rdb)
	m.retryBase = time.Millisecond
	m.retryJitter = time.Millisecond
	ctx := context.Background()

	_, ok, err := m.Acquire(ctx, "event:1", time.Second, 0)
	require.NoError(t, err)
	require.True(t, ok)

	err = m.WithLock(ctx, "event:1", time.Second, 1, func(ctx context.Context) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	assert.True(t, errors.Is(err, apperr.ErrLockNotAcquired))
}

func TestWithLockPropagatesFnError(t *testing.T) {
	rdb := newFakeRedis()
	m := NewManager(rdb)
	ctx := context.Background()

	wantErr := errors.New("boom")
	err := m.WithLock(ctx, "event:1", time.Second, 0, func(ctx context.Context) error {
		return wantErr
	})
	assert.True(t, errors.Is(err, wantErr))

	// Released even when fn fails.
	_, ok, err := m.Acquire(ctx, "event:1", time.Second, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}
