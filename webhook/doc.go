// Package webhook implements reliable outbound webhook delivery on top of
// the job engine.
//
// A Webhook is a caller-configured HTTP callback subscription tied to one
// or more event types. The Publisher fans an event out to every active
// subscribed webhook as independent delivery jobs; the DeliveryHandler
// performs one signed HTTP POST per attempt and persists a
// DeliveryAttempt record for each, so the full retry history of a
// delivery is queryable.
//
// Payloads are signed with HMAC-SHA256 over "{timestamp}.{payload}" and
// sent as "sha256=<hex>" in the X-Webhook-Signature header. Receivers can
// check signatures with Verify.
package webhook
