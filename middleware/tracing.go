package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hookline/hookline/job"
)

// tracerName is the instrumentation scope name for hookline tracing.
const tracerName = "github.com/hookline/hookline"

// Tracing returns middleware that wraps each attempt in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used and this middleware becomes a pass-through with zero
// overhead.
//
// Span attributes include: hookline.job.id, hookline.job.name,
// hookline.job.type, hookline.execution.id, hookline.retry_count.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, exec *job.Execution, next Handler) ([]byte, error) {
		ctx, span := tracer.Start(ctx, "hookline.job.execute",
			trace.WithAttributes(
				attribute.String("hookline.job.id", exec.JobID),
				attribute.String("hookline.job.name", exec.Name),
				attribute.String("hookline.job.type", string(exec.Type)),
				attribute.String("hookline.execution.id", exec.ExecutionID.String()),
				attribute.Int("hookline.retry_count", exec.RetryCount),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		out, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return out, err
	}
}
