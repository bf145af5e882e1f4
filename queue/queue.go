package queue

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/hook"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/job"
)

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithHooks sets the lifecycle hook registry the queue emits into.
func WithHooks(r *hook.Registry) Option {
	return func(q *Queue) { q.hooks = r }
}

// WithCapacity bounds the pending ordering. Add returns ErrQueueFull once
// the bound is reached. Zero (the default) means unbounded: producers are
// never blocked by Add.
func WithCapacity(n int) Option {
	return func(q *Queue) { q.capacity = n }
}

// Queue is the priority-ordered pending set plus the job store tracking
// active, completed, and failed executions. Safe for concurrent use.
type Queue struct {
	mu sync.Mutex

	// order holds execution ID strings of pending executions, head first.
	order []string
	// active holds every execution not yet terminal, keyed by execution ID.
	active map[string]*job.Execution
	// processing holds exactly the executions currently inside a handler.
	processing map[string]struct{}

	completed map[string]*job.Result
	failed    map[string]*job.Result

	paused   bool
	capacity int

	hooks  *hook.Registry
	logger *slog.Logger
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		active:     make(map[string]*job.Execution),
		processing: make(map[string]struct{}),
		completed:  make(map[string]*job.Result),
		failed:     make(map[string]*job.Result),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.hooks == nil {
		q.hooks = hook.NewRegistry(q.logger)
	}
	return q
}

// Add creates an execution for the definition and inserts it according to
// its type: immediate at the front of the ready set, scheduled with a
// next-retry gate then by priority, recurring by priority. Pausing blocks
// dequeue only — Add always enqueues.
func (q *Queue) Add(ctx context.Context, def job.Definition) (id.ExecutionID, error) {
	now := time.Now().UTC()
	exec := &job.Execution{
		Entity:      hookline.NewEntity(),
		Definition:  def,
		ExecutionID: id.NewExecutionID(),
		State:       job.StatePending,
	}

	q.mu.Lock()
	if q.capacity > 0 && len(q.order) >= q.capacity {
		q.mu.Unlock()
		return id.Nil, hookline.ErrQueueFull
	}

	key := exec.ExecutionID.String()
	switch def.Type {
	case job.TypeImmediate:
		q.order = append([]string{key}, q.order...)
	case job.TypeScheduled:
		if def.Delay > 0 {
			at := now.Add(def.Delay)
			exec.NextRetryAt = &at
		}
		q.insertByPriority(exec)
	default:
		// Recurring instances are ordered like any priority job; the
		// schedule package owns expansion into future instances.
		q.insertByPriority(exec)
	}
	q.active[key] = exec
	cp := *exec
	q.mu.Unlock()

	q.hooks.EmitJobEnqueued(ctx, &cp)
	return exec.ExecutionID, nil
}

// insertByPriority places the execution directly before the first pending
// entry whose priority is numerically greater (lower value = higher
// priority). Equal priorities keep insertion order. Callers hold q.mu.
func (q *Queue) insertByPriority(exec *job.Execution) {
	key := exec.ExecutionID.String()
	for i, other := range q.order {
		o, ok := q.active[other]
		if !ok {
			continue
		}
		if o.Priority > exec.Priority {
			q.order = append(q.order[:i], append([]string{key}, q.order[i:]...)...)
			return
		}
	}
	q.order = append(q.order, key)
}

// Next returns the first eligible pending execution, marks it running, and
// moves it into the processing set. It returns nil when the queue is paused
// or no execution is eligible. Stale ordering entries whose backing record
// is gone are pruned silently.
func (q *Queue) Next(ctx context.Context) *job.Execution {
	now := time.Now().UTC()

	q.mu.Lock()
	if q.paused {
		q.mu.Unlock()
		return nil
	}

	for i := 0; i < len(q.order); {
		key := q.order[i]
		exec, ok := q.active[key]
		if !ok {
			// Stale entry referencing a deleted execution: drop it,
			// never surface it as an error.
			q.order = append(q.order[:i], q.order[i+1:]...)
			q.logger.Warn("pruned stale queue entry", slog.String("execution_id", key))
			continue
		}
		if !exec.Eligible(now) {
			i++
			continue
		}

		q.order = append(q.order[:i], q.order[i+1:]...)
		exec.State = job.StateRunning
		started := now
		exec.StartedAt = &started
		exec.Touch()
		q.processing[key] = struct{}{}
		cp := *exec
		q.mu.Unlock()

		q.hooks.EmitJobStarted(ctx, &cp)
		return &cp
	}

	q.mu.Unlock()
	return nil
}

// Complete finalizes a successful execution: it leaves the processing set,
// a success result is written to the completed history, and the execution
// is dropped from active tracking. Unknown IDs are logged and ignored —
// they indicate a race, not a business error.
func (q *Queue) Complete(ctx context.Context, execID id.ExecutionID, output []byte, execTime time.Duration) {
	key := execID.String()
	now := time.Now().UTC()

	q.mu.Lock()
	exec, ok := q.active[key]
	if !ok {
		q.mu.Unlock()
		q.logger.Warn("complete called for unknown execution", slog.String("execution_id", key))
		return
	}

	delete(q.processing, key)
	exec.State = job.StateCompleted
	exec.CompletedAt = &now
	exec.Touch()

	res := &job.Result{
		JobID:         exec.JobID,
		ExecutionID:   exec.ExecutionID,
		Success:       true,
		State:         job.StateCompleted,
		Output:        output,
		ExecutionTime: execTime,
		RetryCount:    exec.RetryCount,
		CompletedAt:   now,
	}
	q.completed[key] = res
	delete(q.active, key)
	cp := *exec
	q.mu.Unlock()

	q.hooks.EmitJobCompleted(ctx, &cp, res)
}

// Fail records a failed attempt. When retry budget remains the execution
// stays active with state reset to pending (the dispatcher is expected to
// follow up with Retry); otherwise it is dropped from active tracking. The
// failure result is written to the failed history either way, so terminal
// outcomes stay discoverable via Status. Returns true when the execution
// remains active for a retry.
func (q *Queue) Fail(ctx context.Context, execID id.ExecutionID, jobErr error, execTime time.Duration) bool {
	return q.fail(ctx, execID, jobErr, execTime, false)
}

// FailTerminal records a failure that must not be retried regardless of
// remaining budget — validation rejections and webhook short-circuits.
func (q *Queue) FailTerminal(ctx context.Context, execID id.ExecutionID, jobErr error, execTime time.Duration) {
	q.fail(ctx, execID, jobErr, execTime, true)
}

func (q *Queue) fail(ctx context.Context, execID id.ExecutionID, jobErr error, execTime time.Duration, forceTerminal bool) bool {
	key := execID.String()
	now := time.Now().UTC()

	q.mu.Lock()
	exec, ok := q.active[key]
	if !ok {
		q.mu.Unlock()
		q.logger.Warn("fail called for unknown execution", slog.String("execution_id", key))
		return false
	}

	delete(q.processing, key)
	exec.LastError = jobErr.Error()
	exec.Touch()

	retryable := !forceTerminal && exec.RetryCount < exec.MaxRetries

	res := &job.Result{
		JobID:         exec.JobID,
		ExecutionID:   exec.ExecutionID,
		Success:       false,
		State:         job.StateFailed,
		Error:         jobErr.Error(),
		ExecutionTime: execTime,
		RetryCount:    exec.RetryCount,
		CompletedAt:   now,
	}
	q.failed[key] = res

	if retryable {
		exec.State = job.StatePending
	} else {
		exec.State = job.StateFailed
		exec.CompletedAt = &now
		delete(q.active, key)
	}
	cp := *exec
	q.mu.Unlock()

	q.hooks.EmitJobFailed(ctx, &cp, jobErr, !retryable)
	return retryable
}

// Retry increments the retry counter, gates the execution until now+delay,
// and reinserts it by priority. Unknown IDs are logged and ignored.
func (q *Queue) Retry(ctx context.Context, execID id.ExecutionID, delay time.Duration) {
	key := execID.String()
	now := time.Now().UTC()

	q.mu.Lock()
	exec, ok := q.active[key]
	if !ok {
		q.mu.Unlock()
		q.logger.Warn("retry called for unknown execution", slog.String("execution_id", key))
		return
	}

	exec.RetryCount++
	exec.State = job.StatePending
	at := now.Add(delay)
	exec.NextRetryAt = &at
	exec.Touch()

	// Never double-insert: an execution occupies at most one slot in the
	// pending ordering.
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	q.insertByPriority(exec)
	attempt := exec.RetryCount
	cp := *exec
	q.mu.Unlock()

	q.hooks.EmitJobRetrying(ctx, &cp, attempt, at)
}

// Cancel removes a pending execution before it is dequeued. It returns
// false for unknown executions and for executions currently in the
// processing set — in-flight work is never interrupted.
func (q *Queue) Cancel(ctx context.Context, execID id.ExecutionID) bool {
	key := execID.String()

	q.mu.Lock()
	if _, inflight := q.processing[key]; inflight {
		q.mu.Unlock()
		return false
	}
	exec, ok := q.active[key]
	if !ok {
		q.mu.Unlock()
		return false
	}

	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	delete(q.active, key)
	cp := *exec
	q.mu.Unlock()

	q.hooks.EmitJobCancelled(ctx, &cp)
	return true
}

// Pause makes Next return nil until Resume. Jobs already dequeued are
// unaffected, and Add keeps accepting work.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume lifts a Pause.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
}

// Paused reports whether dequeue is currently suspended.
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Cleanup trims the completed and failed histories independently down to
// maxHistory entries each, evicting the oldest completions first.
// It returns the number of results evicted.
func (q *Queue) Cleanup(maxHistory int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := trimHistory(q.completed, maxHistory)
	evicted += trimHistory(q.failed, maxHistory)
	return evicted
}

func trimHistory(history map[string]*job.Result, maxHistory int) int {
	if maxHistory < 0 || len(history) <= maxHistory {
		return 0
	}

	type aged struct {
		key string
		at  time.Time
	}
	entries := make([]aged, 0, len(history))
	for k, r := range history {
		entries = append(entries, aged{key: k, at: r.CompletedAt})
	}
	sort.Slice(entries, func(i, k int) bool {
		return entries[i].at.Before(entries[k].at)
	})

	n := len(history) - maxHistory
	for _, e := range entries[:n] {
		delete(history, e.key)
	}
	return n
}

// Status returns the terminal (or latest failed-attempt) result for an
// execution, or nil when none has been recorded.
func (q *Queue) Status(execID id.ExecutionID) *job.Result {
	key := execID.String()

	q.mu.Lock()
	defer q.mu.Unlock()

	if res, ok := q.completed[key]; ok {
		cp := *res
		return &cp
	}
	if res, ok := q.failed[key]; ok {
		cp := *res
		return &cp
	}
	return nil
}

// GetStats returns a snapshot of the queue counters. Total covers active
// executions plus both histories.
func (q *Queue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Queued:     len(q.order),
		Processing: len(q.processing),
		Completed:  len(q.completed),
		Failed:     len(q.failed),
		Total:      len(q.active) + len(q.completed) + len(q.failed),
	}
}

// Size returns the number of pending executions.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Processing returns the number of executions currently inside a handler.
func (q *Queue) Processing() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.processing)
}

// Completed returns the size of the completed history.
func (q *Queue) Completed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.completed)
}

// Failed returns the size of the failed history.
func (q *Queue) Failed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.failed)
}
