package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hookline/hookline/hook"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/job"
)

// meterName is the instrumentation scope name for hookline lifecycle metrics.
const meterName = "github.com/hookline/hookline/observability"

// Compile-time interface checks.
var (
	_ hook.Extension         = (*MetricsExtension)(nil)
	_ hook.JobEnqueued       = (*MetricsExtension)(nil)
	_ hook.JobCompleted      = (*MetricsExtension)(nil)
	_ hook.JobFailed         = (*MetricsExtension)(nil)
	_ hook.JobRetrying       = (*MetricsExtension)(nil)
	_ hook.JobCancelled      = (*MetricsExtension)(nil)
	_ hook.RecurringFired    = (*MetricsExtension)(nil)
	_ hook.DeliveryAttempted = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle counters through OTel.
// Register it on the engine's hook registry to automatically track enqueue
// rates, completion counts, failure rates, retries, cancellations, recurring
// fires, and webhook delivery outcomes.
type MetricsExtension struct {
	jobEnqueued       metric.Int64Counter
	jobCompleted      metric.Int64Counter
	jobFailed         metric.Int64Counter
	jobRetried        metric.Int64Counter
	jobCancelled      metric.Int64Counter
	recurringFired    metric.Int64Counter
	deliveryAttempted metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. If none is configured, the instruments are noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. Use this variant to inject a specific MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On instrument-creation errors the OTel API returns noop instruments,
	// so the extension degrades gracefully.
	m.jobEnqueued, _ = meter.Int64Counter("hookline.job.enqueued",
		metric.WithDescription("Executions accepted into the queue"),
		metric.WithUnit("{job}"),
	)
	m.jobCompleted, _ = meter.Int64Counter("hookline.job.completed",
		metric.WithDescription("Executions that finished successfully"),
		metric.WithUnit("{job}"),
	)
	m.jobFailed, _ = meter.Int64Counter("hookline.job.failed",
		metric.WithDescription("Failed attempts, by terminality"),
		metric.WithUnit("{attempt}"),
	)
	m.jobRetried, _ = meter.Int64Counter("hookline.job.retried",
		metric.WithDescription("Failed executions re-queued for another attempt"),
		metric.WithUnit("{job}"),
	)
	m.jobCancelled, _ = meter.Int64Counter("hookline.job.cancelled",
		metric.WithDescription("Pending executions removed before dequeue"),
		metric.WithUnit("{job}"),
	)
	m.recurringFired, _ = meter.Int64Counter("hookline.recurring.fired",
		metric.WithDescription("Instances enqueued from recurring entries"),
		metric.WithUnit("{job}"),
	)
	m.deliveryAttempted, _ = meter.Int64Counter("hookline.delivery.attempts",
		metric.WithDescription("Webhook delivery attempts, by outcome"),
		metric.WithUnit("{attempt}"),
	)
	return m
}

// Name implements hook.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements hook.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, exec *job.Execution) error {
	m.jobEnqueued.Add(ctx, 1, jobAttrs(exec))
	return nil
}

// OnJobCompleted implements hook.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, exec *job.Execution, _ *job.Result) error {
	m.jobCompleted.Add(ctx, 1, jobAttrs(exec))
	return nil
}

// OnJobFailed implements hook.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, exec *job.Execution, _ error, terminal bool) error {
	m.jobFailed.Add(ctx, 1, jobAttrs(exec), metric.WithAttributes(
		attribute.Bool("terminal", terminal),
	))
	return nil
}

// OnJobRetrying implements hook.JobRetrying.
func (m *MetricsExtension) OnJobRetrying(ctx context.Context, exec *job.Execution, _ int, _ time.Time) error {
	m.jobRetried.Add(ctx, 1, jobAttrs(exec))
	return nil
}

// OnJobCancelled implements hook.JobCancelled.
func (m *MetricsExtension) OnJobCancelled(ctx context.Context, exec *job.Execution) error {
	m.jobCancelled.Add(ctx, 1, jobAttrs(exec))
	return nil
}

// ── Scheduler and delivery hooks ────────────────────

// OnRecurringFired implements hook.RecurringFired.
func (m *MetricsExtension) OnRecurringFired(ctx context.Context, entryName string, _ id.ExecutionID) error {
	m.recurringFired.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entry", entryName),
	))
	return nil
}

// OnDeliveryAttempted implements hook.DeliveryAttempted.
func (m *MetricsExtension) OnDeliveryAttempted(ctx context.Context, _ id.DeliveryID, _ id.WebhookID, eventType string, _ int, success bool, _ int) error {
	m.deliveryAttempted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.Bool("success", success),
	))
	return nil
}

func jobAttrs(exec *job.Execution) metric.AddOption {
	return metric.WithAttributes(
		attribute.String("job_name", exec.Name),
		attribute.String("job_type", string(exec.Type)),
	)
}
