package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hookrelay/hookrelay"
)

// AcquireLock takes the scheduler lock with a single conditional upsert:
// the insert wins when no row exists, the update wins only when the
// existing row has expired. Either way one statement decides ownership.
func (s *Store) AcquireLock(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	var got string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO hookrelay_lock (name, holder, expires_at)
		VALUES ($1, $2, now() + ($3 * interval '1 millisecond'))
		ON CONFLICT (name) DO UPDATE
		SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
		WHERE hookrelay_lock.expires_at <= now()
		RETURNING holder`,
		lockName, holder, ttl.Milliseconds(),
	).Scan(&got)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil // live lock held elsewhere
		}
		return false, fmt.Errorf("hookrelay/postgres: acquire lock: %w", err)
	}
	return got == holder, nil
}

// ReleaseLock deletes the lock only while still held by holder.
func (s *Store) ReleaseLock(ctx context.Context, holder string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM hookrelay_lock
		WHERE name = $1 AND holder = $2 AND expires_at > now()`,
		lockName, holder,
	)
	if err != nil {
		return fmt.Errorf("hookrelay/postgres: release lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hookrelay.ErrLockNotHeld
	}
	return nil
}

// RenewLock extends the expiry while still held by holder.
func (s *Store) RenewLock(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE hookrelay_lock
		SET expires_at = now() + ($3 * interval '1 millisecond')
		WHERE name = $1 AND holder = $2 AND expires_at > now()`,
		lockName, holder, ttl.Milliseconds(),
	)
	if err != nil {
		return false, fmt.Errorf("hookrelay/postgres: renew lock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LockHolder returns the current live holder, or "" when the lock is free
// or expired.
func (s *Store) LockHolder(ctx context.Context) (string, error) {
	var holder string
	err := s.pool.QueryRow(ctx,
		`SELECT holder FROM hookrelay_lock WHERE name = $1 AND expires_at > now()`,
		lockName,
	).Scan(&holder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("hookrelay/postgres: lock holder: %w", err)
	}
	return holder, nil
}

// ForceReleaseLock unconditionally deletes the lock row.
func (s *Store) ForceReleaseLock(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM hookrelay_lock WHERE name = $1`, lockName,
	); err != nil {
		return fmt.Errorf("hookrelay/postgres: force release lock: %w", err)
	}
	return nil
}
