// Package audithook is a hookline extension that bridges lifecycle events
// to an immutable audit trail backend.
//
// Every job, scheduler, and webhook delivery hook emits a structured audit
// event through the [Recorder] interface. The extension assigns severity
// levels (info for normal operations, warning for retries, critical for
// terminal failures) and rich metadata (job name, type, attempt counts,
// errors).
//
// # Usage
//
//	ext := audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return trail.Append(ctx, evt.Action, evt.ResourceID, evt.Metadata)
//	}))
//	eng.Hooks().Register(ext)
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionDeliveryAttempted,
//	    ),
//	)
package audithook
