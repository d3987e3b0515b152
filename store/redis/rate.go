package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// LastDispatch reads the rate marker. A missing key (never set, or TTL
// lapsed) reports ok=false.
func (s *Store) LastDispatch(ctx context.Context) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, rateKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("hookrelay/redis: last dispatch: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("hookrelay/redis: parse rate marker: %w", err)
	}
	return t, true, nil
}

// MarkDispatched stores the marker with its TTL.
func (s *Store) MarkDispatched(ctx context.Context, t time.Time, ttl time.Duration) error {
	if err := s.client.Set(ctx, rateKey, t.UTC().Format(time.RFC3339Nano), ttl).Err(); err != nil {
		return fmt.Errorf("hookrelay/redis: mark dispatched: %w", err)
	}
	return nil
}

// ClearRateMarker deletes the marker.
func (s *Store) ClearRateMarker(ctx context.Context) error {
	if err := s.client.Del(ctx, rateKey).Err(); err != nil {
		return fmt.Errorf("hookrelay/redis: clear rate marker: %w", err)
	}
	return nil
}
