package job

import (
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/id"
)

// Type determines when a job becomes eligible for execution.
type Type string

const (
	// TypeImmediate jobs bypass priority ordering: they are placed at the
	// front of the ready set and processed before any other pending job.
	TypeImmediate Type = "immediate"
	// TypeScheduled jobs become eligible after their Delay has elapsed.
	TypeScheduled Type = "scheduled"
	// TypeRecurring jobs are ordered by priority like scheduled jobs; the
	// schedule package re-enqueues future instances — the queue itself
	// never expands recurrences.
	TypeRecurring Type = "recurring"
)

// State represents the lifecycle state of an execution.
type State string

const (
	// StatePending means the execution is waiting to be picked up.
	StatePending State = "pending"
	// StateRunning means a worker is currently executing the job.
	StateRunning State = "running"
	// StateCompleted means the job finished successfully.
	StateCompleted State = "completed"
	// StateFailed means the job failed and will not be retried.
	StateFailed State = "failed"
)

// Definition is the caller's declarative description of one unit of work.
// It is immutable once passed to Add.
type Definition struct {
	// JobID is the caller-assigned logical identifier. One definition may
	// produce multiple executions over its retries; they all share JobID.
	JobID string `json:"job_id"`

	// Name is a human-readable label and, together with Type, the registry
	// key that selects the handler.
	Name string `json:"name"`

	// Type selects eligibility semantics (immediate, scheduled, recurring).
	Type Type `json:"type"`

	// Payload is an opaque blob passed through to the handler.
	Payload []byte `json:"payload,omitempty"`

	// Priority orders dequeue. Lower numeric value means higher priority;
	// ties are broken FIFO by insertion order.
	Priority int `json:"priority"`

	// MaxRetries caps retry attempts after the initial failure.
	MaxRetries int `json:"max_retries"`

	// Delay postpones first eligibility (scheduled jobs).
	Delay time.Duration `json:"delay,omitempty"`

	// CronExpr is the recurrence specification for recurring jobs
	// (consumed by the schedule package, opaque to the queue).
	CronExpr string `json:"cron_expr,omitempty"`

	// Timeout is the per-attempt execution budget. Zero means the
	// engine-wide default applies.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Tags are free-form labels for observability; never used for logic.
	Tags []string `json:"tags,omitempty"`
}

// Execution is the engine's mutable tracking record for one definition.
// A retry reuses the same ExecutionID and increments RetryCount. Callers
// must never mutate an Execution directly; the queue owns all state
// transitions.
type Execution struct {
	hookline.Entity

	Definition

	// ExecutionID is engine-generated and distinct from the caller's JobID.
	ExecutionID id.ExecutionID `json:"execution_id"`

	State       State      `json:"state"`
	RetryCount  int        `json:"retry_count"`
	LastError   string     `json:"last_error,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Eligible reports whether the execution may be dequeued at the given time.
func (e *Execution) Eligible(now time.Time) bool {
	return e.NextRetryAt == nil || !e.NextRetryAt.After(now)
}

// Result is the immutable terminal record of an execution, written to the
// completed or failed history when the execution leaves active tracking
// (and, for retryable failures, after each failed attempt).
type Result struct {
	JobID       string         `json:"job_id"`
	ExecutionID id.ExecutionID `json:"execution_id"`
	Success     bool           `json:"success"`
	State       State          `json:"state"`
	Output      []byte         `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	// ExecutionTime is the wall-clock duration of the last attempt.
	ExecutionTime time.Duration `json:"execution_time"`
	RetryCount    int           `json:"retry_count"`
	CompletedAt   time.Time     `json:"completed_at"`
}
