// Package observability provides an OpenTelemetry-based metrics extension
// for hookline. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for job enqueue, completion, failure, retry, cancel,
// recurring-fire, and webhook delivery events.
//
// For per-attempt tracing and latency histograms, see the middleware
// package: middleware.Tracing() and middleware.Metrics().
package observability
