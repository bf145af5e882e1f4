package hook

import (
	"context"
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after an execution is accepted into the queue.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, exec *job.Execution) error
}

// JobStarted is called when a worker begins executing a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, exec *job.Execution) error
}

// JobCompleted is called after a job finishes successfully and its result
// has been written to the completed history.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, exec *job.Execution, res *job.Result) error
}

// JobFailed is called after a failed attempt is recorded. Terminal reports
// whether the execution left active tracking (no retries remain).
type JobFailed interface {
	OnJobFailed(ctx context.Context, exec *job.Execution, jobErr error, terminal bool) error
}

// JobRetrying is called when a failed execution is re-queued.
// attempt is the 1-indexed retry number; nextRetryAt is when the execution
// becomes eligible again.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, exec *job.Execution, attempt int, nextRetryAt time.Time) error
}

// JobCancelled is called when a pending execution is removed before dequeue.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, exec *job.Execution) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// RecurringFired is called when the scheduler enqueues an instance of a
// recurring job.
type RecurringFired interface {
	OnRecurringFired(ctx context.Context, entryName string, execID id.ExecutionID) error
}

// DeliveryAttempted is called after the webhook handler records the outcome
// of one delivery attempt.
type DeliveryAttempted interface {
	OnDeliveryAttempted(ctx context.Context, deliveryID id.DeliveryID, webhookID id.WebhookID, eventType string, attempt int, success bool, statusCode int) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
