// Package memory implements store.Store fully in memory. Safe for
// concurrent access. Intended for unit testing, development, and
// single-process deployments that do not need delivery history to
// survive a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/webhook"
)

// Compile-time interface check.
var _ webhook.Store = (*Store)(nil)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	webhooks map[string]*webhook.Webhook
	attempts map[string]*webhook.DeliveryAttempt // key: "deliveryID:attempt"
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		webhooks: make(map[string]*webhook.Webhook),
		attempts: make(map[string]*webhook.DeliveryAttempt),
	}
}

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Webhooks
// ──────────────────────────────────────────────────

// CreateWebhook persists a new webhook definition.
func (m *Store) CreateWebhook(_ context.Context, w *webhook.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := w.ID.String()
	if _, exists := m.webhooks[key]; exists {
		return fmt.Errorf("%w: webhook %s", hookline.ErrDuplicateEntry, key)
	}
	cp := *w
	m.webhooks[key] = &cp
	return nil
}

// GetWebhook retrieves a webhook by ID.
func (m *Store) GetWebhook(_ context.Context, webhookID id.WebhookID) (*webhook.Webhook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.webhooks[webhookID.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", hookline.ErrWebhookNotFound, webhookID)
	}
	cp := *w
	return &cp, nil
}

// ListWebhooks returns all webhook definitions.
func (m *Store) ListWebhooks(_ context.Context) ([]*webhook.Webhook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*webhook.Webhook, 0, len(m.webhooks))
	for _, w := range m.webhooks {
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID.String() < out[k].ID.String() })
	return out, nil
}

// ListWebhooksByEvent returns the active webhooks subscribed to eventType.
func (m *Store) ListWebhooksByEvent(_ context.Context, eventType string) ([]*webhook.Webhook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*webhook.Webhook, 0)
	for _, w := range m.webhooks {
		if !w.Active || !w.SubscribesTo(eventType) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID.String() < out[k].ID.String() })
	return out, nil
}

// UpdateWebhook replaces an existing webhook definition.
func (m *Store) UpdateWebhook(_ context.Context, w *webhook.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := w.ID.String()
	if _, ok := m.webhooks[key]; !ok {
		return fmt.Errorf("%w: %s", hookline.ErrWebhookNotFound, key)
	}
	cp := *w
	m.webhooks[key] = &cp
	return nil
}

// DeleteWebhook removes a webhook definition. Attempt history stays until
// purged.
func (m *Store) DeleteWebhook(_ context.Context, webhookID id.WebhookID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := webhookID.String()
	if _, ok := m.webhooks[key]; !ok {
		return fmt.Errorf("%w: %s", hookline.ErrWebhookNotFound, key)
	}
	delete(m.webhooks, key)
	return nil
}

// ──────────────────────────────────────────────────
// Delivery attempts
// ──────────────────────────────────────────────────

func attemptKey(deliveryID id.DeliveryID, attempt int) string {
	return fmt.Sprintf("%s:%d", deliveryID, attempt)
}

// CreateAttempt persists a new delivery attempt record.
func (m *Store) CreateAttempt(_ context.Context, a *webhook.DeliveryAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := attemptKey(a.DeliveryID, a.Attempt)
	if _, exists := m.attempts[key]; exists {
		return fmt.Errorf("%w: attempt %s", hookline.ErrDuplicateEntry, key)
	}
	cp := *a
	m.attempts[key] = &cp
	return nil
}

// UpdateAttempt replaces the record identified by (DeliveryID, Attempt).
func (m *Store) UpdateAttempt(_ context.Context, a *webhook.DeliveryAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := attemptKey(a.DeliveryID, a.Attempt)
	if _, ok := m.attempts[key]; !ok {
		return fmt.Errorf("%w: %s", hookline.ErrAttemptNotFound, key)
	}
	cp := *a
	m.attempts[key] = &cp
	return nil
}

// ListAttempts returns all attempts for a delivery in ascending attempt
// order.
func (m *Store) ListAttempts(_ context.Context, deliveryID id.DeliveryID) ([]*webhook.DeliveryAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*webhook.DeliveryAttempt, 0)
	for _, a := range m.attempts {
		if a.DeliveryID.String() != deliveryID.String() {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Attempt < out[k].Attempt })
	return out, nil
}

// CountAttempts returns the number of attempts recorded for a delivery.
func (m *Store) CountAttempts(_ context.Context, deliveryID id.DeliveryID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, a := range m.attempts {
		if a.DeliveryID.String() == deliveryID.String() {
			n++
		}
	}
	return n, nil
}

// ListAttemptsByWebhook returns attempts for a webhook, newest first,
// capped at limit (0 means no cap).
func (m *Store) ListAttemptsByWebhook(_ context.Context, webhookID id.WebhookID, limit int) ([]*webhook.DeliveryAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*webhook.DeliveryAttempt, 0)
	for _, a := range m.attempts {
		if a.WebhookID.String() != webhookID.String() {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PurgeAttempts removes attempt records created before the given time.
func (m *Store) PurgeAttempts(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for key, a := range m.attempts {
		if a.CreatedAt.Before(before) {
			delete(m.attempts, key)
			purged++
		}
	}
	return purged, nil
}
