package hookrelay

import (
	"fmt"
	"time"
)

// Config holds configuration for the callback dispatch engine.
type Config struct {
	// BatchSize is the maximum number of items extracted per dispatch cycle.
	BatchSize int

	// MaxDelay is the maximum age of the oldest pending item before a
	// size-insufficient batch is forced out.
	MaxDelay time.Duration

	// MinInterval is the global floor between dispatch cycle starts,
	// enforced across all processes through the rate marker.
	MinInterval time.Duration

	// LockTTL is the expiry on the scheduler lock. It must exceed the
	// worst-case duration of one full cycle (BatchSize × InterItemSpacing
	// plus network latency margin).
	LockTTL time.Duration

	// InterItemSpacing is the fixed delay between consecutive sends within
	// a cycle, smoothing outbound load.
	InterItemSpacing time.Duration

	// MaxRetries is how many times a failed send is retried before the
	// item is dropped terminally.
	MaxRetries int

	// RetryBackoffBase is the base delay for the linear resend countdown
	// (base × (attempt + 1)).
	RetryBackoffBase time.Duration

	// StuckThreshold is how long an item may sit in-flight before the
	// sweeper considers its claiming cycle dead and requeues it.
	StuckThreshold time.Duration

	// SendTimeout bounds each individual send attempt.
	SendTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:        50,
		MaxDelay:         30 * time.Second,
		MinInterval:      5 * time.Second,
		LockTTL:          2 * time.Minute,
		InterItemSpacing: 1 * time.Second,
		MaxRetries:       3,
		RetryBackoffBase: 30 * time.Second,
		StuckThreshold:   5 * time.Minute,
		SendTimeout:      10 * time.Second,
	}
}

// Validate checks the configuration for values that would make the engine
// misbehave. It returns ErrInvalidConfig wrapped with details.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.MinInterval < 0 {
		return fmt.Errorf("%w: min interval must be non-negative, got %s", ErrInvalidConfig, c.MinInterval)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("%w: lock TTL must be positive, got %s", ErrInvalidConfig, c.LockTTL)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must be non-negative, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.StuckThreshold <= 0 {
		return fmt.Errorf("%w: stuck threshold must be positive, got %s", ErrInvalidConfig, c.StuckThreshold)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("%w: send timeout must be positive, got %s", ErrInvalidConfig, c.SendTimeout)
	}
	if worst := time.Duration(c.BatchSize) * c.InterItemSpacing; c.LockTTL <= worst {
		return fmt.Errorf("%w: lock TTL %s does not cover worst-case cycle %s", ErrInvalidConfig, c.LockTTL, worst)
	}
	return nil
}
