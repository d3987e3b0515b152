package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hookrelay/hookrelay"
	"github.com/hookrelay/hookrelay/id"
	"github.com/hookrelay/hookrelay/queue"
)

// moveScript atomically pops up to ARGV[1] IDs from the head of the
// pending list, pushes them onto the tail of the in-flight list in the
// same order, and stamps each item Hash with the claim time.
// KEYS: pending, inflight. ARGV: n, claimed_at (RFC3339Nano),
// claimed_ms (unix millis), item key prefix.
var moveScript = goredis.NewScript(`
local moved = {}
for i = 1, tonumber(ARGV[1]) do
	local id = redis.call('LPOP', KEYS[1])
	if not id then break end
	redis.call('RPUSH', KEYS[2], id)
	redis.call('HSET', ARGV[4] .. id, 'claimed_at', ARGV[2], 'claimed_ms', ARGV[3])
	moved[#moved + 1] = id
end
return moved
`)

// removeScript removes one occurrence of the ID from the in-flight list
// and deletes the item body if the list held it.
// KEYS: inflight. ARGV: id, item key prefix.
var removeScript = goredis.NewScript(`
local n = redis.call('LREM', KEYS[1], 1, ARGV[1])
if n > 0 then
	redis.call('DEL', ARGV[2] .. ARGV[1])
end
return n
`)

// requeueScript moves every in-flight ID whose claim time is at or before
// the cutoff back to the tail of the pending list and clears its claim
// fields. A cutoff of 0 requeues everything.
// KEYS: inflight, pending. ARGV: cutoff millis, item key prefix.
var requeueScript = goredis.NewScript(`
local ids = redis.call('LRANGE', KEYS[1], 0, -1)
local requeued = {}
for _, id in ipairs(ids) do
	local claimed = redis.call('HGET', ARGV[2] .. id, 'claimed_ms')
	if tonumber(ARGV[1]) == 0 or not claimed or tonumber(claimed) <= tonumber(ARGV[1]) then
		redis.call('LREM', KEYS[1], 1, id)
		redis.call('RPUSH', KEYS[2], id)
		redis.call('HDEL', ARGV[2] .. id, 'claimed_at', 'claimed_ms')
		requeued[#requeued + 1] = id
	end
end
return requeued
`)

// resetScript deletes both lists, every item body they reference, and the
// stats counters.
// KEYS: pending, inflight, queued, sent, failed. ARGV: item key prefix.
var resetScript = goredis.NewScript(`
for _, list in ipairs({KEYS[1], KEYS[2]}) do
	local ids = redis.call('LRANGE', list, 0, -1)
	for _, id in ipairs(ids) do
		redis.call('DEL', ARGV[1] .. id)
	end
end
return redis.call('DEL', KEYS[1], KEYS[2], KEYS[3], KEYS[4], KEYS[5])
`)

// AppendPending stores the item as a Hash and pushes its ID onto the
// pending list.
func (s *Store) AppendPending(ctx context.Context, item *queue.Item) error {
	iID := item.ID.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, itemKey(iID), itemToMap(item))
	pipe.RPush(ctx, pendingKey, iID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookrelay/redis: append pending: %w", err)
	}
	return nil
}

// PendingLen returns the pending list depth.
func (s *Store) PendingLen(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, pendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("hookrelay/redis: pending len: %w", err)
	}
	return int(n), nil
}

// InFlightLen returns the in-flight list depth.
func (s *Store) InFlightLen(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, inFlightKey).Result()
	if err != nil {
		return 0, fmt.Errorf("hookrelay/redis: in-flight len: %w", err)
	}
	return int(n), nil
}

// PendingOldest returns the item at the head of the pending list.
func (s *Store) PendingOldest(ctx context.Context) (*queue.Item, error) {
	iID, err := s.client.LIndex(ctx, pendingKey, 0).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("hookrelay/redis: pending oldest: %w", err)
	}
	return s.getItem(ctx, iID)
}

// MoveToInFlight runs the atomic move script and fetches the moved items.
func (s *Store) MoveToInFlight(ctx context.Context, n int, claimedAt time.Time) ([]*queue.Item, error) {
	raw, err := moveScript.Run(ctx, s.client,
		[]string{pendingKey, inFlightKey},
		n,
		claimedAt.UTC().Format(time.RFC3339Nano),
		claimedAt.UTC().UnixMilli(),
		itemKeyPrefix,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("hookrelay/redis: move to in-flight: %w", err)
	}

	ids, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("hookrelay/redis: move to in-flight: unexpected reply %T", raw)
	}

	items := make([]*queue.Item, 0, len(ids))
	for _, v := range ids {
		iID, sok := v.(string)
		if !sok {
			continue
		}
		item, getErr := s.getItem(ctx, iID)
		if getErr != nil || item == nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// RemoveInFlight removes a terminally resolved item and its body.
func (s *Store) RemoveInFlight(ctx context.Context, itemID id.ItemID) error {
	n, err := removeScript.Run(ctx, s.client,
		[]string{inFlightKey},
		itemID.String(),
		itemKeyPrefix,
	).Int()
	if err != nil {
		return fmt.Errorf("hookrelay/redis: remove in-flight: %w", err)
	}
	if n == 0 {
		return hookrelay.ErrItemNotFound
	}
	return nil
}

// SetAttempts persists the attempt counter on the item Hash.
func (s *Store) SetAttempts(ctx context.Context, itemID id.ItemID, attempts int) error {
	key := itemKey(itemID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("hookrelay/redis: set attempts exists: %w", err)
	}
	if exists == 0 {
		return hookrelay.ErrItemNotFound
	}

	if err := s.client.HSet(ctx, key, "attempt_count", strconv.Itoa(attempts)).Err(); err != nil {
		return fmt.Errorf("hookrelay/redis: set attempts: %w", err)
	}
	return nil
}

// RequeueStale runs the atomic stale-requeue script.
func (s *Store) RequeueStale(ctx context.Context, olderThan time.Duration) ([]id.ItemID, error) {
	var cutoff int64
	if olderThan > 0 {
		cutoff = time.Now().UTC().Add(-olderThan).UnixMilli()
	}

	raw, err := requeueScript.Run(ctx, s.client,
		[]string{inFlightKey, pendingKey},
		cutoff,
		itemKeyPrefix,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("hookrelay/redis: requeue stale: %w", err)
	}

	replies, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("hookrelay/redis: requeue stale: unexpected reply %T", raw)
	}

	ids := make([]id.ItemID, 0, len(replies))
	for _, v := range replies {
		str, sok := v.(string)
		if !sok {
			continue
		}
		itemID, parseErr := id.ParseItemID(str)
		if parseErr != nil {
			s.logger.Warn("skipping malformed item id in in-flight list", "raw", str)
			continue
		}
		ids = append(ids, itemID)
	}
	return ids, nil
}

// IncrCounter increments a stats counter.
func (s *Store) IncrCounter(ctx context.Context, c queue.Counter) error {
	if err := s.client.Incr(ctx, counterKey(string(c))).Err(); err != nil {
		return fmt.Errorf("hookrelay/redis: incr %s: %w", c, err)
	}
	return nil
}

// Stats returns a snapshot of the stats counters.
func (s *Store) Stats(ctx context.Context) (queue.Stats, error) {
	vals, err := s.client.MGet(ctx,
		counterKey(string(queue.CounterQueued)),
		counterKey(string(queue.CounterSent)),
		counterKey(string(queue.CounterFailed)),
	).Result()
	if err != nil {
		return queue.Stats{}, fmt.Errorf("hookrelay/redis: stats: %w", err)
	}

	parse := func(v interface{}) uint64 {
		str, ok := v.(string)
		if !ok {
			return 0
		}
		n, _ := strconv.ParseUint(str, 10, 64) //nolint:errcheck // counters are store-written integers
		return n
	}
	return queue.Stats{
		Queued: parse(vals[0]),
		Sent:   parse(vals[1]),
		Failed: parse(vals[2]),
	}, nil
}

// ResetQueue deletes both lists, all item bodies, and the counters.
func (s *Store) ResetQueue(ctx context.Context) error {
	err := resetScript.Run(ctx, s.client,
		[]string{
			pendingKey,
			inFlightKey,
			counterKey(string(queue.CounterQueued)),
			counterKey(string(queue.CounterSent)),
			counterKey(string(queue.CounterFailed)),
		},
		itemKeyPrefix,
	).Err()
	if err != nil {
		return fmt.Errorf("hookrelay/redis: reset queue: %w", err)
	}
	return nil
}

// getItem loads one item Hash; returns nil when the Hash is gone.
func (s *Store) getItem(ctx context.Context, iID string) (*queue.Item, error) {
	vals, err := s.client.HGetAll(ctx, itemKey(iID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hookrelay/redis: get item: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return mapToItem(vals)
}

// ── helpers ──

func itemToMap(item *queue.Item) map[string]interface{} {
	m := map[string]interface{}{
		"id":            item.ID.String(),
		"payload":       string(item.Payload),
		"target":        item.Target,
		"queued_at":     item.QueuedAt.UTC().Format(time.RFC3339Nano),
		"attempt_count": strconv.Itoa(item.AttemptCount),
	}
	if item.ClaimedAt != nil {
		m["claimed_at"] = item.ClaimedAt.UTC().Format(time.RFC3339Nano)
		m["claimed_ms"] = strconv.FormatInt(item.ClaimedAt.UTC().UnixMilli(), 10)
	}
	return m
}

func mapToItem(m map[string]string) (*queue.Item, error) {
	itemID, err := id.ParseItemID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("hookrelay/redis: parse item id: %w", err)
	}

	attempts, _ := strconv.Atoi(m["attempt_count"])            //nolint:errcheck // best-effort parse from trusted Redis data
	queuedAt, _ := time.Parse(time.RFC3339Nano, m["queued_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	item := &queue.Item{
		ID:           itemID,
		Payload:      []byte(m["payload"]),
		Target:       m["target"],
		QueuedAt:     queuedAt,
		AttemptCount: attempts,
	}

	if v := m["claimed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		item.ClaimedAt = &t
	}
	return item, nil
}
