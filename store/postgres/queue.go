package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hookrelay/hookrelay"
	"github.com/hookrelay/hookrelay/id"
	"github.com/hookrelay/hookrelay/queue"
)

// AppendPending inserts a new pending item; position comes from the
// sequence default, placing it at the FIFO tail.
func (s *Store) AppendPending(ctx context.Context, item *queue.Item) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hookrelay_items (id, payload, target, queued_at, attempt_count, state)
		VALUES ($1, $2, $3, $4, $5, 'pending')`,
		item.ID.String(), item.Payload, item.Target, item.QueuedAt.UTC(), item.AttemptCount,
	)
	if err != nil {
		return fmt.Errorf("hookrelay/postgres: append pending: %w", err)
	}
	return nil
}

// PendingLen returns the pending depth.
func (s *Store) PendingLen(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM hookrelay_items WHERE state = 'pending'`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("hookrelay/postgres: pending len: %w", err)
	}
	return n, nil
}

// InFlightLen returns the in-flight depth.
func (s *Store) InFlightLen(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM hookrelay_items WHERE state = 'inflight'`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("hookrelay/postgres: in-flight len: %w", err)
	}
	return n, nil
}

// PendingOldest returns the head of the pending FIFO, or nil when empty.
func (s *Store) PendingOldest(ctx context.Context) (*queue.Item, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, payload, target, queued_at, attempt_count, claimed_at
		FROM hookrelay_items WHERE state = 'pending'
		ORDER BY position LIMIT 1`)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("hookrelay/postgres: pending oldest: %w", err)
	}
	return item, nil
}

// MoveToInFlight claims up to n pending items in one statement. SKIP
// LOCKED keeps concurrent extractors from blocking on, or double-claiming,
// the same rows.
func (s *Store) MoveToInFlight(ctx context.Context, n int, claimedAt time.Time) ([]*queue.Item, error) {
	rows, err := s.pool.Query(ctx, `
		WITH claimed AS (
			SELECT id FROM hookrelay_items
			WHERE state = 'pending'
			ORDER BY position
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE hookrelay_items i
		SET state = 'inflight', claimed_at = $2
		FROM claimed c
		WHERE i.id = c.id
		RETURNING i.id, i.payload, i.target, i.queued_at, i.attempt_count, i.claimed_at, i.position`,
		n, claimedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: move to in-flight: %w", err)
	}
	defer rows.Close()

	type positioned struct {
		item *queue.Item
		pos  int64
	}
	var claimed []positioned
	for rows.Next() {
		var (
			rawID    string
			item     queue.Item
			claimed2 *time.Time
			pos      int64
		)
		if scanErr := rows.Scan(&rawID, &item.Payload, &item.Target, &item.QueuedAt, &item.AttemptCount, &claimed2, &pos); scanErr != nil {
			return nil, fmt.Errorf("hookrelay/postgres: scan claimed item: %w", scanErr)
		}
		itemID, parseErr := id.ParseItemID(rawID)
		if parseErr != nil {
			return nil, fmt.Errorf("hookrelay/postgres: parse item id: %w", parseErr)
		}
		item.ID = itemID
		item.ClaimedAt = claimed2
		claimed = append(claimed, positioned{item: &item, pos: pos})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: move to in-flight rows: %w", err)
	}

	// UPDATE ... RETURNING has no ordering guarantee; restore FIFO here.
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].pos < claimed[j].pos })

	items := make([]*queue.Item, 0, len(claimed))
	for _, c := range claimed {
		items = append(items, c.item)
	}
	return items, nil
}

// RemoveInFlight deletes a terminally resolved item.
func (s *Store) RemoveInFlight(ctx context.Context, itemID id.ItemID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM hookrelay_items WHERE id = $1 AND state = 'inflight'`,
		itemID.String(),
	)
	if err != nil {
		return fmt.Errorf("hookrelay/postgres: remove in-flight: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hookrelay.ErrItemNotFound
	}
	return nil
}

// SetAttempts persists the attempt counter of an in-flight item.
func (s *Store) SetAttempts(ctx context.Context, itemID id.ItemID, attempts int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE hookrelay_items SET attempt_count = $2 WHERE id = $1`,
		itemID.String(), attempts,
	)
	if err != nil {
		return fmt.Errorf("hookrelay/postgres: set attempts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hookrelay.ErrItemNotFound
	}
	return nil
}

// RequeueStale returns stale in-flight items to the pending tail in one
// statement. Re-stamping position moves them behind current pending items;
// attempt_count is untouched so retry limits still apply.
func (s *Store) RequeueStale(ctx context.Context, olderThan time.Duration) ([]id.ItemID, error) {
	all := olderThan <= 0
	cutoff := time.Now().UTC().Add(-olderThan)

	rows, err := s.pool.Query(ctx, `
		UPDATE hookrelay_items
		SET state = 'pending', claimed_at = NULL,
		    position = nextval('hookrelay_position_seq')
		WHERE state = 'inflight' AND ($1 OR claimed_at <= $2)
		RETURNING id`,
		all, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: requeue stale: %w", err)
	}
	defer rows.Close()

	var ids []id.ItemID
	for rows.Next() {
		var raw string
		if scanErr := rows.Scan(&raw); scanErr != nil {
			return nil, fmt.Errorf("hookrelay/postgres: scan requeued id: %w", scanErr)
		}
		itemID, parseErr := id.ParseItemID(raw)
		if parseErr != nil {
			s.logger.Warn("skipping malformed item id", "raw", raw)
			continue
		}
		ids = append(ids, itemID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hookrelay/postgres: requeue stale rows: %w", err)
	}
	return ids, nil
}

// IncrCounter upserts a counter increment.
func (s *Store) IncrCounter(ctx context.Context, c queue.Counter) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hookrelay_counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = hookrelay_counters.value + 1`,
		string(c),
	)
	if err != nil {
		return fmt.Errorf("hookrelay/postgres: incr %s: %w", c, err)
	}
	return nil
}

// Stats returns a snapshot of the stats counters.
func (s *Store) Stats(ctx context.Context) (queue.Stats, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, value FROM hookrelay_counters`)
	if err != nil {
		return queue.Stats{}, fmt.Errorf("hookrelay/postgres: stats: %w", err)
	}
	defer rows.Close()

	var stats queue.Stats
	for rows.Next() {
		var (
			name  string
			value uint64
		)
		if scanErr := rows.Scan(&name, &value); scanErr != nil {
			return queue.Stats{}, fmt.Errorf("hookrelay/postgres: scan counter: %w", scanErr)
		}
		switch queue.Counter(name) {
		case queue.CounterQueued:
			stats.Queued = value
		case queue.CounterSent:
			stats.Sent = value
		case queue.CounterFailed:
			stats.Failed = value
		}
	}
	if err := rows.Err(); err != nil {
		return queue.Stats{}, fmt.Errorf("hookrelay/postgres: stats rows: %w", err)
	}
	return stats, nil
}

// ResetQueue truncates all queue state.
func (s *Store) ResetQueue(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`TRUNCATE hookrelay_items, hookrelay_counters`,
	)
	if err != nil {
		return fmt.Errorf("hookrelay/postgres: reset queue: %w", err)
	}
	return nil
}

// scanItem reads one item row (without position).
func scanItem(row pgx.Row) (*queue.Item, error) {
	var (
		rawID   string
		item    queue.Item
		claimed *time.Time
	)
	if err := row.Scan(&rawID, &item.Payload, &item.Target, &item.QueuedAt, &item.AttemptCount, &claimed); err != nil {
		return nil, err
	}
	itemID, err := id.ParseItemID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse item id: %w", err)
	}
	item.ID = itemID
	item.ClaimedAt = claimed
	return &item, nil
}
