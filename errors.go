package hookline

import (
	"errors"
	"time"
)

var (
	// Queue errors.
	ErrExecutionNotFound = errors.New("hookline: execution not found")
	ErrQueuePaused       = errors.New("hookline: queue paused")
	ErrQueueFull         = errors.New("hookline: queue at capacity")

	// Registry errors.
	ErrNoHandler        = errors.New("hookline: no handler registered")
	ErrDuplicateHandler = errors.New("hookline: handler already registered")

	// Handler errors.
	ErrValidationFailed = errors.New("hookline: payload validation failed")

	// Webhook errors.
	ErrWebhookNotFound  = errors.New("hookline: webhook not found")
	ErrWebhookInactive  = errors.New("hookline: webhook inactive")
	ErrNotSubscribed    = errors.New("hookline: event type not subscribed")
	ErrAttemptNotFound  = errors.New("hookline: delivery attempt not found")
	ErrDeliveryRejected = errors.New("hookline: delivery rejected")

	// Store errors.
	ErrStoreClosed = errors.New("hookline: store closed")

	// Scheduler errors.
	ErrDuplicateEntry = errors.New("hookline: duplicate recurring entry")
	ErrEntryNotFound  = errors.New("hookline: recurring entry not found")
)

// nonRetryable marks an error as terminal: the dispatcher fails the job
// immediately without consuming retry budget.
type nonRetryable struct {
	err error
}

func (e *nonRetryable) Error() string { return e.err.Error() }

func (e *nonRetryable) Unwrap() error { return e.err }

// NonRetryable wraps err so the dispatcher treats it as a terminal failure
// regardless of the job's remaining retry budget. Validation rejections and
// webhook short-circuits (inactive endpoint, unsubscribed event) use this to
// distinguish "not applicable" from a transient delivery failure.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryable{err: err}
}

// IsNonRetryable reports whether err (or any error it wraps) was marked
// with NonRetryable.
func IsNonRetryable(err error) bool {
	var nr *nonRetryable
	return errors.As(err, &nr)
}

// retryAfter pins the delay before the next attempt, bypassing the
// engine-wide backoff strategy.
type retryAfter struct {
	err   error
	delay time.Duration
}

func (e *retryAfter) Error() string { return e.err.Error() }

func (e *retryAfter) Unwrap() error { return e.err }

// RetryAfter wraps err so the dispatcher waits exactly delay before the
// next attempt instead of consulting its backoff strategy. Handlers that
// own their retry schedule — webhook deliveries honoring a per-webhook
// ladder — use this so the gate matches what they recorded.
func RetryAfter(delay time.Duration, err error) error {
	if err == nil {
		return nil
	}
	return &retryAfter{err: err, delay: delay}
}

// RetryDelay extracts a delay pinned with RetryAfter. The second return
// is false when err carries no pinned delay.
func RetryDelay(err error) (time.Duration, bool) {
	var ra *retryAfter
	if errors.As(err, &ra) {
		return ra.delay, true
	}
	return 0, false
}
