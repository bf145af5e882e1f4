package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hookline/hookline/hook"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/job"
)

// Compile-time interface checks.
var (
	_ hook.Extension         = (*Extension)(nil)
	_ hook.JobEnqueued       = (*Extension)(nil)
	_ hook.JobStarted        = (*Extension)(nil)
	_ hook.JobCompleted      = (*Extension)(nil)
	_ hook.JobFailed         = (*Extension)(nil)
	_ hook.JobRetrying       = (*Extension)(nil)
	_ hook.JobCancelled      = (*Extension)(nil)
	_ hook.RecurringFired    = (*Extension)(nil)
	_ hook.DeliveryAttempted = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so this package carries no backend dependency; callers
// inject the concrete trail at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// AuditEvent is a local representation of an audit event. Callers provide
// a RecorderFunc adapter that bridges to their audit backend.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges hookline lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements hook.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements hook.JobEnqueued.
func (e *Extension) OnJobEnqueued(ctx context.Context, exec *job.Execution) error {
	return e.record(ctx, ActionJobEnqueued, SeverityInfo, OutcomeSuccess,
		ResourceExecution, exec.ExecutionID.String(), CategoryJob, nil,
		"job_id", exec.JobID,
		"job_name", exec.Name,
		"job_type", string(exec.Type),
	)
}

// OnJobStarted implements hook.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, exec *job.Execution) error {
	return e.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess,
		ResourceExecution, exec.ExecutionID.String(), CategoryJob, nil,
		"job_id", exec.JobID,
		"job_name", exec.Name,
		"retry_count", exec.RetryCount,
	)
}

// OnJobCompleted implements hook.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, exec *job.Execution, res *job.Result) error {
	return e.record(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess,
		ResourceExecution, exec.ExecutionID.String(), CategoryJob, nil,
		"job_id", exec.JobID,
		"job_name", exec.Name,
		"elapsed_ms", res.ExecutionTime.Milliseconds(),
		"retry_count", res.RetryCount,
	)
}

// OnJobFailed implements hook.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, exec *job.Execution, jobErr error, terminal bool) error {
	severity := SeverityWarning
	if terminal {
		severity = SeverityCritical
	}
	return e.record(ctx, ActionJobFailed, severity, OutcomeFailure,
		ResourceExecution, exec.ExecutionID.String(), CategoryJob, jobErr,
		"job_id", exec.JobID,
		"job_name", exec.Name,
		"retry_count", exec.RetryCount,
		"max_retries", exec.MaxRetries,
		"terminal", terminal,
	)
}

// OnJobRetrying implements hook.JobRetrying.
func (e *Extension) OnJobRetrying(ctx context.Context, exec *job.Execution, attempt int, nextRetryAt time.Time) error {
	return e.record(ctx, ActionJobRetrying, SeverityWarning, OutcomeFailure,
		ResourceExecution, exec.ExecutionID.String(), CategoryJob, nil,
		"job_id", exec.JobID,
		"job_name", exec.Name,
		"attempt", attempt,
		"next_retry_at", nextRetryAt.Format(time.RFC3339),
	)
}

// OnJobCancelled implements hook.JobCancelled.
func (e *Extension) OnJobCancelled(ctx context.Context, exec *job.Execution) error {
	return e.record(ctx, ActionJobCancelled, SeverityInfo, OutcomeSuccess,
		ResourceExecution, exec.ExecutionID.String(), CategoryJob, nil,
		"job_id", exec.JobID,
		"job_name", exec.Name,
	)
}

// ── Scheduler and delivery hooks ────────────────────

// OnRecurringFired implements hook.RecurringFired.
func (e *Extension) OnRecurringFired(ctx context.Context, entryName string, execID id.ExecutionID) error {
	return e.record(ctx, ActionRecurringFired, SeverityInfo, OutcomeSuccess,
		ResourceEntry, entryName, CategorySchedule, nil,
		"execution_id", execID.String(),
	)
}

// OnDeliveryAttempted implements hook.DeliveryAttempted.
func (e *Extension) OnDeliveryAttempted(ctx context.Context, deliveryID id.DeliveryID, webhookID id.WebhookID, eventType string, attempt int, success bool, statusCode int) error {
	severity := SeverityInfo
	outcome := OutcomeSuccess
	if !success {
		severity = SeverityWarning
		outcome = OutcomeFailure
	}
	return e.record(ctx, ActionDeliveryAttempted, severity, outcome,
		ResourceDelivery, deliveryID.String(), CategoryWebhook, nil,
		"webhook_id", webhookID.String(),
		"event_type", eventType,
		"attempt", attempt,
		"status_code", statusCode,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audithook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
