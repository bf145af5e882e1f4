package webhook

import (
	"context"
	"time"

	"github.com/hookline/hookline/id"
)

// Store is the persistence contract for webhook definitions and delivery
// attempt history. Backends: memory and Redis.
type Store interface {
	// CreateWebhook persists a new webhook definition.
	CreateWebhook(ctx context.Context, w *Webhook) error

	// GetWebhook retrieves a webhook by ID.
	GetWebhook(ctx context.Context, webhookID id.WebhookID) (*Webhook, error)

	// ListWebhooks returns all webhook definitions.
	ListWebhooks(ctx context.Context) ([]*Webhook, error)

	// ListWebhooksByEvent returns the active webhooks subscribed to the
	// given event type.
	ListWebhooksByEvent(ctx context.Context, eventType string) ([]*Webhook, error)

	// UpdateWebhook replaces an existing webhook definition.
	UpdateWebhook(ctx context.Context, w *Webhook) error

	// DeleteWebhook removes a webhook definition. Attempt history is kept
	// until purged.
	DeleteWebhook(ctx context.Context, webhookID id.WebhookID) error

	// CreateAttempt persists a new delivery attempt record.
	CreateAttempt(ctx context.Context, a *DeliveryAttempt) error

	// UpdateAttempt replaces the attempt record identified by
	// (DeliveryID, Attempt).
	UpdateAttempt(ctx context.Context, a *DeliveryAttempt) error

	// ListAttempts returns all attempts for a delivery in ascending
	// attempt order.
	ListAttempts(ctx context.Context, deliveryID id.DeliveryID) ([]*DeliveryAttempt, error)

	// CountAttempts returns the number of attempts recorded for a delivery.
	CountAttempts(ctx context.Context, deliveryID id.DeliveryID) (int, error)

	// ListAttemptsByWebhook returns the most recent attempts for a
	// webhook, newest first, capped at limit (0 means no cap).
	ListAttemptsByWebhook(ctx context.Context, webhookID id.WebhookID, limit int) ([]*DeliveryAttempt, error)

	// PurgeAttempts removes attempt records created before the given time.
	// Returns the number of records removed.
	PurgeAttempts(ctx context.Context, before time.Time) (int64, error)
}
