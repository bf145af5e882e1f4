package webhook

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/backoff"
	"github.com/hookline/hookline/id"
)

// Defaults applied when a webhook does not carry its own overrides.
const (
	// DefaultMaxAttempts is the total number of delivery attempts made for
	// one event before the delivery is marked permanently failed.
	DefaultMaxAttempts = 3

	// DefaultTimeout bounds a single HTTP delivery attempt.
	DefaultTimeout = 30 * time.Second
)

// Webhook is a caller-configured HTTP callback subscription. The engine
// treats it as read-only configuration; mutation goes through the Store.
type Webhook struct {
	hookline.Entity

	// ID identifies the webhook across deliveries.
	ID id.WebhookID `json:"id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// URL is the target endpoint for delivery POSTs.
	URL string `json:"url"`

	// Secret is the shared HMAC signing key.
	Secret string `json:"secret"`

	// Events lists the subscribed event types.
	Events []string `json:"events"`

	// Active gates delivery. Inactive webhooks reject events before any
	// attempt is constructed.
	Active bool `json:"active"`

	// MaxAttempts overrides DefaultMaxAttempts when positive.
	MaxAttempts int `json:"max_attempts,omitempty"`

	// RetryDelays overrides the default backoff ladder when non-empty.
	RetryDelays []time.Duration `json:"retry_delays,omitempty"`

	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Headers are custom headers added to every delivery attempt.
	Headers map[string]string `json:"headers,omitempty"`
}

// New creates an active webhook with a generated ID.
func New(name, rawURL, secret string, events ...string) *Webhook {
	return &Webhook{
		Entity: hookline.NewEntity(),
		ID:     id.NewWebhookID(),
		Name:   name,
		URL:    rawURL,
		Secret: secret,
		Events: events,
		Active: true,
	}
}

// Validate checks that the webhook is deliverable: a parseable absolute
// URL, a non-empty secret, and at least one subscribed event type.
func (w *Webhook) Validate() error {
	u, err := url.Parse(w.URL)
	if err != nil {
		return fmt.Errorf("webhook %s: invalid url: %w", w.ID, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("webhook %s: url %q is not absolute", w.ID, w.URL)
	}
	if w.Secret == "" {
		return fmt.Errorf("webhook %s: secret is required", w.ID)
	}
	if len(w.Events) == 0 {
		return fmt.Errorf("webhook %s: at least one event type is required", w.ID)
	}
	return nil
}

// SubscribesTo reports whether the webhook subscribes to the given event
// type. The wildcard "*" subscribes to everything.
func (w *Webhook) SubscribesTo(eventType string) bool {
	return slices.Contains(w.Events, "*") || slices.Contains(w.Events, eventType)
}

// EffectiveMaxAttempts returns the per-webhook attempt cap, falling back
// to DefaultMaxAttempts.
func (w *Webhook) EffectiveMaxAttempts() int {
	if w.MaxAttempts > 0 {
		return w.MaxAttempts
	}
	return DefaultMaxAttempts
}

// EffectiveTimeout returns the per-webhook attempt timeout, falling back
// to DefaultTimeout.
func (w *Webhook) EffectiveTimeout() time.Duration {
	if w.Timeout > 0 {
		return w.Timeout
	}
	return DefaultTimeout
}

// EffectiveRetryDelays returns the per-webhook backoff ladder, falling
// back to the engine's default ladder.
func (w *Webhook) EffectiveRetryDelays() []time.Duration {
	if len(w.RetryDelays) > 0 {
		return w.RetryDelays
	}
	return backoff.DefaultDelays()
}

// Event is one logical occurrence published to subscribed webhooks. The ID
// is stable across retries of the same event so receivers can deduplicate.
type Event struct {
	// ID identifies the logical event.
	ID id.EventID `json:"id"`

	// Type is the event type webhooks subscribe to.
	Type string `json:"type"`

	// Payload is the UTF-8 JSON body delivered to receivers.
	Payload []byte `json:"payload"`

	// OccurredAt is when the event was produced.
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent creates an event with a generated ID stamped at now.
func NewEvent(eventType string, payload []byte) *Event {
	return &Event{
		ID:         id.NewEventID(),
		Type:       eventType,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
