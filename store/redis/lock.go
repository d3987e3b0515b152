package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hookrelay/hookrelay"
)

// releaseScript deletes the lock key only while it still holds ARGV[1].
var releaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// renewScript extends the lock TTL only while it still holds ARGV[1].
var renewScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// AcquireLock takes the scheduler lock with SET NX and a TTL — a single
// atomic conditional-set-with-expiry, never a read-then-write pair.
func (s *Store) AcquireLock(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockKey, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("hookrelay/redis: acquire lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock deletes the lock only while still held by holder, via a Lua
// compare-and-delete so an expired-and-reacquired lock is never released
// out from under its new owner.
func (s *Store) ReleaseLock(ctx context.Context, holder string) error {
	n, err := releaseScript.Run(ctx, s.client, []string{lockKey}, holder).Int()
	if err != nil {
		return fmt.Errorf("hookrelay/redis: release lock: %w", err)
	}
	if n == 0 {
		return hookrelay.ErrLockNotHeld
	}
	return nil
}

// RenewLock extends the TTL while still held by holder.
func (s *Store) RenewLock(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	n, err := renewScript.Run(ctx, s.client, []string{lockKey}, holder, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("hookrelay/redis: renew lock: %w", err)
	}
	return n == 1, nil
}

// LockHolder returns the current holder, or "" when the lock is free.
func (s *Store) LockHolder(ctx context.Context) (string, error) {
	holder, err := s.client.Get(ctx, lockKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("hookrelay/redis: lock holder: %w", err)
	}
	return holder, nil
}

// ForceReleaseLock unconditionally deletes the lock key.
func (s *Store) ForceReleaseLock(ctx context.Context) error {
	if err := s.client.Del(ctx, lockKey).Err(); err != nil {
		return fmt.Errorf("hookrelay/redis: force release lock: %w", err)
	}
	return nil
}
