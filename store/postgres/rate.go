package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// LastDispatch reads the rate marker, honoring its expiry column.
func (s *Store) LastDispatch(ctx context.Context) (time.Time, bool, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT last_dispatch_at FROM hookrelay_rate WHERE name = $1 AND expires_at > now()`,
		rateName,
	).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("hookrelay/postgres: last dispatch: %w", err)
	}
	return t, true, nil
}

// MarkDispatched upserts the marker with its expiry.
func (s *Store) MarkDispatched(ctx context.Context, t time.Time, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hookrelay_rate (name, last_dispatch_at, expires_at)
		VALUES ($1, $2, now() + ($3 * interval '1 millisecond'))
		ON CONFLICT (name) DO UPDATE
		SET last_dispatch_at = EXCLUDED.last_dispatch_at,
		    expires_at = EXCLUDED.expires_at`,
		rateName, t.UTC(), ttl.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("hookrelay/postgres: mark dispatched: %w", err)
	}
	return nil
}

// ClearRateMarker deletes the marker row.
func (s *Store) ClearRateMarker(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM hookrelay_rate WHERE name = $1`, rateName,
	); err != nil {
		return fmt.Errorf("hookrelay/postgres: clear rate marker: %w", err)
	}
	return nil
}
