// Package lock implements mutual exclusion across process boundaries on top
// of Redis. A lock is a `lock:{scope}` key holding a random owner token with
// a TTL; the token, not the process, is what owns the lock, and the TTL
// guarantees eventual release if the holder crashes mid-critical-section.
package lock

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ticketd/internal/apperr"
	"ticketd/internal/logger"
)

const keyPrefix = "lock:"

// Compare-and-delete must be one indivisible operation so a lock that
// expired and was re-acquired by another owner is never deleted by us.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0`

// Client is the subset of redis.Client the manager needs.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type Manager struct {
	rdb Client

	// retry delay bounds between failed acquire attempts
	retryBase   time.Duration
	retryJitter time.Duration
}

func NewManager(rdb Client) *Manager {
	return &Manager{
		rdb:         rdb,
		retryBase:   20 * time.Millisecond,
		retryJitter: 40 * time.Millisecond,
	}
}

// Acquire attempts a set-if-absent of a fresh token under lock:{scope} with
// the given TTL. On conflict it retries up to maxRetries times with
// randomized delay to avoid synchronized retry storms. Returns the owner
// token and whether acquisition succeeded.
func (m *Manager) Acquire(ctx context.Context, scope string, ttl time.Duration, maxRetries int) (string, bool, error) {
	key := keyPrefix + scope
	token := uuid.New().String()

	for attempt := 0; ; attempt++ {
		ok, err := m.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("lock acquire %s: %w", scope, err)
		}
		if ok {
			return token, true, nil
		}
		if attempt >= maxRetries {
			return "", false, nil
		}

		delay := m.retryBase + time.Duration(rand.Int63n(int64(m.retryJitter)))
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Release deletes lock:{scope} only if it still holds token. Returns whether
// the release actually removed the lock.
func (m *Manager) Release(ctx context.Context, scope, token string) (bool, error) {
	key := keyPrefix + scope

	res, err := m.rdb.Eval(ctx, releaseScript, []string{key}, token).Result()
	if err != nil {
		return false, fmt.Errorf("lock release %s: %w", scope, err)
	}

	deleted, ok := res.(int64)
	return ok && deleted == 1, nil
}

// WithLock acquires the scope or fails with apperr.ErrLockNotAcquired, runs
// fn, and releases on every exit path before propagating fn's error.
// Not reentrant: fn must not acquire the same scope again.
func (m *Manager) WithLock(ctx context.Context, scope string, ttl time.Duration, maxRetries int, fn func(ctx context.Context) error) error {
	token, ok, err := m.Acquire(ctx, scope, ttl, maxRetries)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", apperr.ErrLockNotAcquired, scope)
	}

	defer func() {
		released, relErr := m.Release(ctx, scope, token)
		if relErr != nil {
			logger.WithContext(ctx).Error("Failed to release lock", "scope", scope, "error", relErr)
		} else if !released {
			// TTL expired during the critical section; another holder may
			// have taken over.
			logger.WithContext(ctx).Warn("Lock was no longer held at release", "scope", scope)
		}
	}()

	return fn(ctx)
}
