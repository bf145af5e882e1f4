package webhook

import (
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/id"
)

// AttemptStatus is the outcome state of one delivery attempt.
type AttemptStatus string

const (
	// AttemptPending is the initial state, written before the HTTP call.
	AttemptPending AttemptStatus = "pending"

	// AttemptSuccess means the receiver answered with a status code < 400.
	AttemptSuccess AttemptStatus = "success"

	// AttemptFailed means a transport error, timeout, or status code >= 400.
	AttemptFailed AttemptStatus = "failed"
)

// DeliveryAttempt records one HTTP call made in pursuit of delivering a
// single logical event to a single webhook. All attempts for the same
// delivery share a DeliveryID; (DeliveryID, Attempt) identifies a record.
type DeliveryAttempt struct {
	hookline.Entity

	// DeliveryID identifies the logical delivery (one webhook, one event).
	DeliveryID id.DeliveryID `json:"delivery_id"`

	// WebhookID is the target webhook.
	WebhookID id.WebhookID `json:"webhook_id"`

	// EventID is the logical event, stable across retries.
	EventID id.EventID `json:"event_id"`

	// EventType is the event type that triggered the delivery.
	EventType string `json:"event_type"`

	// URL is the endpoint the attempt was sent to.
	URL string `json:"url"`

	// Payload is the JSON body sent.
	Payload []byte `json:"payload"`

	// Signature is the computed X-Webhook-Signature value.
	Signature string `json:"signature"`

	// Attempt is the 1-indexed attempt number within the delivery.
	Attempt int `json:"attempt"`

	// Status is the attempt outcome.
	Status AttemptStatus `json:"status"`

	// StatusCode is the HTTP response code, zero on transport error.
	StatusCode int `json:"status_code,omitempty"`

	// ResponseBody holds a truncated copy of the response body.
	ResponseBody string `json:"response_body,omitempty"`

	// ResponseHeaders holds the response headers, flattened to their
	// first value.
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`

	// Error describes a failed attempt.
	Error string `json:"error,omitempty"`

	// Duration is the wall-clock time of the HTTP call.
	Duration time.Duration `json:"duration"`

	// NextRetryAt is set on failed attempts that will be retried.
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}
