// Package backoff provides pluggable resend delay strategies for failed
// callback deliveries. All strategies are safe for concurrent use (they are
// stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the countdown before a resend attempt.
type Strategy interface {
	// Delay returns how long to wait before resend attempt n (1-indexed).
	// Attempt 1 is the first resend after the initial failed delivery.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Linear
// ──────────────────────────────────────────────────

// Linear grows the countdown linearly with the attempt number:
// Delay = min(Base * (attempt + 1), Max). The +1 keeps even the first
// resend off the immediate hot path, so a flapping receiver gets breathing
// room from the start.
type Linear struct {
	Base time.Duration
	Max  time.Duration
}

// NewLinear creates a linear backoff strategy.
func NewLinear(base, maxDelay time.Duration) *Linear {
	return &Linear{Base: base, Max: maxDelay}
}

// Delay returns Base * (attempt + 1), capped at Max.
func (l *Linear) Delay(attempt int) time.Duration {
	d := l.Base * time.Duration(attempt+1)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the countdown each attempt:
// Delay = min(Base * 2^(attempt-1), Max).
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(base, maxDelay time.Duration) *Exponential {
	return &Exponential{Base: base, Max: maxDelay}
}

// Delay returns Base * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Base) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter applies full jitter to an exponential base:
// Delay = random value in [0, min(Base * 2^(attempt-1), Max)].
// This prevents synchronized resend storms when many deliveries fail
// against the same dead receiver at once.
type ExponentialWithJitter struct {
	Base time.Duration
	Max  time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(base, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Base: base, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Base * 2^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := float64(e.Base) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// Default returns the backoff used by the dispatcher when none is
// configured: Linear over the given base with no cap.
func Default(base time.Duration) Strategy {
	return NewLinear(base, 0)
}
