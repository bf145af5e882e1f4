// Package backoff provides pluggable retry delay policies for job execution.
// All strategies are pure functions of (attempt, config) — no hidden state —
// and safe for concurrent use.
package backoff

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Ladder
// ──────────────────────────────────────────────────

// Ladder walks an ordered list of delays: attempt n waits Delays[n-1],
// clamped to the last element once attempts exceed the list length.
// This is the canonical policy for webhook delivery retries.
type Ladder struct {
	Delays []time.Duration
}

// NewLadder creates a ladder strategy. The delay list must be non-empty
// and contain no negative entries; a malformed list is a configuration
// error surfaced before the engine accepts jobs.
func NewLadder(delays ...time.Duration) (*Ladder, error) {
	if len(delays) == 0 {
		return nil, fmt.Errorf("backoff: ladder requires at least one delay")
	}
	for i, d := range delays {
		if d < 0 {
			return nil, fmt.Errorf("backoff: ladder delay %d is negative (%v)", i, d)
		}
	}
	return &Ladder{Delays: delays}, nil
}

// MustLadder is like NewLadder but panics on error. Use for hardcoded ladders.
func MustLadder(delays ...time.Duration) *Ladder {
	l, err := NewLadder(delays...)
	if err != nil {
		panic(err)
	}
	return l
}

// Delay returns Delays[attempt-1], clamped to the last element.
func (l *Ladder) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(l.Delays) {
		attempt = len(l.Delays)
	}
	return l.Delays[attempt-1]
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

// Linear increases the delay linearly with the attempt number.
// Delay = min(Initial * attempt, Max).
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear backoff strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * attempt, capped at Max.
func (l *Linear) Delay(attempt int) time.Duration {
	d := l.Initial * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Base * 2^attempt, Max). This is the engine's fallback when
// no explicit delay ladder is configured.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(base, maxDelay time.Duration) *Exponential {
	return &Exponential{Base: base, Max: maxDelay}
}

// Delay returns Base * 2^attempt, capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Base) * math.Pow(2, float64(attempt)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Base * 2^attempt, Max)].
// This prevents thundering herd when many retries happen simultaneously.
type ExponentialWithJitter struct {
	Base time.Duration
	Max  time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(base, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Base: base, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Base * 2^attempt, Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := float64(e.Base) * math.Pow(2, float64(attempt))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Defaults
// ──────────────────────────────────────────────────

// DefaultDelays is the canonical retry ladder shared by the generic job
// engine and the webhook delivery handler.
func DefaultDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second}
}

// DefaultStrategy returns the default backoff used by the engine:
// the canonical 1s/5s/15s ladder.
func DefaultStrategy() Strategy {
	return MustLadder(DefaultDelays()...)
}

// FallbackStrategy returns the policy applied when a caller supplies no
// explicit delay list: exponential with 1s base and 1m cap.
func FallbackStrategy() Strategy {
	return NewExponential(1*time.Second, 1*time.Minute)
}
