package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobEnqueuedEntry struct {
	name string
	hook JobEnqueued
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobRetryingEntry struct {
	name string
	hook JobRetrying
}

type jobCancelledEntry struct {
	name string
	hook JobCancelled
}

type recurringFiredEntry struct {
	name string
	hook RecurringFired
}

type deliveryAttemptedEntry struct {
	name string
	hook DeliveryAttempted
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry fans lifecycle events out to registered extensions. Register all
// extensions before the engine starts; Registry is not synchronized for
// concurrent registration.
type Registry struct {
	logger     *slog.Logger
	extensions []Extension

	jobEnqueued       []jobEnqueuedEntry
	jobStarted        []jobStartedEntry
	jobCompleted      []jobCompletedEntry
	jobFailed         []jobFailedEntry
	jobRetrying       []jobRetryingEntry
	jobCancelled      []jobCancelledEntry
	recurringFired    []recurringFiredEntry
	deliveryAttempted []deliveryAttemptedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobEnqueued); ok {
		r.jobEnqueued = append(r.jobEnqueued, jobEnqueuedEntry{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobRetrying); ok {
		r.jobRetrying = append(r.jobRetrying, jobRetryingEntry{name, h})
	}
	if h, ok := e.(JobCancelled); ok {
		r.jobCancelled = append(r.jobCancelled, jobCancelledEntry{name, h})
	}
	if h, ok := e.(RecurringFired); ok {
		r.recurringFired = append(r.recurringFired, recurringFiredEntry{name, h})
	}
	if h, ok := e.(DeliveryAttempted); ok {
		r.deliveryAttempted = append(r.deliveryAttempted, deliveryAttemptedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobEnqueued notifies all extensions that implement JobEnqueued.
func (r *Registry) EmitJobEnqueued(ctx context.Context, exec *job.Execution) {
	for _, e := range r.jobEnqueued {
		if err := e.hook.OnJobEnqueued(ctx, exec); err != nil {
			r.logHookError("OnJobEnqueued", e.name, err)
		}
	}
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, exec *job.Execution) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, exec); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, exec *job.Execution, res *job.Result) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, exec, res); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, exec *job.Execution, jobErr error, terminal bool) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, exec, jobErr, terminal); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobRetrying notifies all extensions that implement JobRetrying.
func (r *Registry) EmitJobRetrying(ctx context.Context, exec *job.Execution, attempt int, nextRetryAt time.Time) {
	for _, e := range r.jobRetrying {
		if err := e.hook.OnJobRetrying(ctx, exec, attempt, nextRetryAt); err != nil {
			r.logHookError("OnJobRetrying", e.name, err)
		}
	}
}

// EmitJobCancelled notifies all extensions that implement JobCancelled.
func (r *Registry) EmitJobCancelled(ctx context.Context, exec *job.Execution) {
	for _, e := range r.jobCancelled {
		if err := e.hook.OnJobCancelled(ctx, exec); err != nil {
			r.logHookError("OnJobCancelled", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitRecurringFired notifies all extensions that implement RecurringFired.
func (r *Registry) EmitRecurringFired(ctx context.Context, entryName string, execID id.ExecutionID) {
	for _, e := range r.recurringFired {
		if err := e.hook.OnRecurringFired(ctx, entryName, execID); err != nil {
			r.logHookError("OnRecurringFired", e.name, err)
		}
	}
}

// EmitDeliveryAttempted notifies all extensions that implement DeliveryAttempted.
func (r *Registry) EmitDeliveryAttempted(ctx context.Context, deliveryID id.DeliveryID, webhookID id.WebhookID, eventType string, attempt int, success bool, statusCode int) {
	for _, e := range r.deliveryAttempted {
		if err := e.hook.OnDeliveryAttempted(ctx, deliveryID, webhookID, eventType, attempt, success, statusCode); err != nil {
			r.logHookError("OnDeliveryAttempted", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
