package audithook

// Audit event actions. Each constant corresponds to one lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobEnqueued       = "job.enqueued"
	ActionJobStarted        = "job.started"
	ActionJobCompleted      = "job.completed"
	ActionJobFailed         = "job.failed"
	ActionJobRetrying       = "job.retrying"
	ActionJobCancelled      = "job.cancelled"
	ActionRecurringFired    = "recurring.fired"
	ActionDeliveryAttempted = "delivery.attempted"
)

// Audit event categories group related actions.
const (
	CategoryJob      = "hookline.job"
	CategorySchedule = "hookline.schedule"
	CategoryWebhook  = "hookline.webhook"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceExecution = "execution"
	ResourceEntry     = "recurring_entry"
	ResourceDelivery  = "delivery"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobEnqueued,
		ActionJobStarted,
		ActionJobCompleted,
		ActionJobFailed,
		ActionJobRetrying,
		ActionJobCancelled,
		ActionRecurringFired,
		ActionDeliveryAttempted,
	}
}
