// Package hook defines the observer system for Hookline.
//
// Extensions are notified of lifecycle events and can react to them —
// recording metrics, persisting audit trails, forwarding notifications.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobCompleted(ctx context.Context, exec *job.Execution, res *job.Result) error {
//	    log.Printf("job %s completed in %s", exec.ExecutionID, res.ExecutionTime)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobEnqueued] — execution was accepted into the queue
//   - [JobStarted] — worker began executing the job
//   - [JobCompleted] — job finished successfully
//   - [JobFailed] — an attempt failed (terminally or with budget remaining)
//   - [JobRetrying] — a failed execution was re-queued with a delay
//   - [JobCancelled] — a pending execution was removed before dequeue
//
// # Other Hooks
//
//   - [RecurringFired] — the scheduler enqueued an instance of a recurring job
//   - [DeliveryAttempted] — the webhook handler finished one delivery attempt
//   - [Shutdown] — the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Emission happens only after
// the corresponding queue mutation has completed, so an observer always
// sees the store state implied by the event. Hook errors are logged and
// never propagated — they must not block the pipeline.
package hook
