package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/webhook"
)

// ──────────────────────────────────────────────────
// Webhooks
// ──────────────────────────────────────────────────

// CreateWebhook persists a new webhook definition.
func (s *Store) CreateWebhook(ctx context.Context, w *webhook.Webhook) error {
	wID := w.ID.String()
	key := webhookKey(wID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: create webhook exists: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: webhook %s", hookline.ErrDuplicateEntry, wID)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, webhookToMap(w))
	pipe.SAdd(ctx, webhookIDsKey, wID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: create webhook: %w", err)
	}
	return nil
}

// GetWebhook retrieves a webhook by ID.
func (s *Store) GetWebhook(ctx context.Context, webhookID id.WebhookID) (*webhook.Webhook, error) {
	vals, err := s.client.HGetAll(ctx, webhookKey(webhookID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: get webhook: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%w: %s", hookline.ErrWebhookNotFound, webhookID)
	}
	return mapToWebhook(vals)
}

// ListWebhooks returns all webhook definitions.
func (s *Store) ListWebhooks(ctx context.Context) ([]*webhook.Webhook, error) {
	ids, err := s.client.SMembers(ctx, webhookIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list webhooks: %w", err)
	}
	sort.Strings(ids)

	out := make([]*webhook.Webhook, 0, len(ids))
	for _, wID := range ids {
		vals, getErr := s.client.HGetAll(ctx, webhookKey(wID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		w, convErr := mapToWebhook(vals)
		if convErr != nil {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// ListWebhooksByEvent returns the active webhooks subscribed to eventType.
func (s *Store) ListWebhooksByEvent(ctx context.Context, eventType string) ([]*webhook.Webhook, error) {
	all, err := s.ListWebhooks(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*webhook.Webhook, 0, len(all))
	for _, w := range all {
		if w.Active && w.SubscribesTo(eventType) {
			out = append(out, w)
		}
	}
	return out, nil
}

// UpdateWebhook replaces an existing webhook definition.
func (s *Store) UpdateWebhook(ctx context.Context, w *webhook.Webhook) error {
	key := webhookKey(w.ID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: update webhook exists: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", hookline.ErrWebhookNotFound, w.ID)
	}

	if err := s.client.HSet(ctx, key, webhookToMap(w)).Err(); err != nil {
		return fmt.Errorf("hookline/redis: update webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes a webhook definition. Attempt history stays until
// purged.
func (s *Store) DeleteWebhook(ctx context.Context, webhookID id.WebhookID) error {
	wID := webhookID.String()
	key := webhookKey(wID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: delete webhook exists: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", hookline.ErrWebhookNotFound, wID)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, webhookIDsKey, wID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: delete webhook: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Delivery attempts
// ──────────────────────────────────────────────────

// CreateAttempt persists a new delivery attempt record.
func (s *Store) CreateAttempt(ctx context.Context, a *webhook.DeliveryAttempt) error {
	dID := a.DeliveryID.String()
	key := attemptKey(dID, a.Attempt)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: create attempt exists: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: attempt %s:%d", hookline.ErrDuplicateEntry, dID, a.Attempt)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, attemptToMap(a))
	pipe.SAdd(ctx, deliveryAttemptsKey(dID), strconv.Itoa(a.Attempt))
	pipe.SAdd(ctx, webhookAttemptsKey(a.WebhookID.String()), key)
	pipe.SAdd(ctx, attemptIDsKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: create attempt: %w", err)
	}
	return nil
}

// UpdateAttempt replaces the record identified by (DeliveryID, Attempt).
func (s *Store) UpdateAttempt(ctx context.Context, a *webhook.DeliveryAttempt) error {
	key := attemptKey(a.DeliveryID.String(), a.Attempt)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("hookline/redis: update attempt exists: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s:%d", hookline.ErrAttemptNotFound, a.DeliveryID, a.Attempt)
	}

	fields := attemptToMap(a)

	// HSet never removes hash fields, so the conditional ones must be
	// cleared explicitly when this update omits them.
	pipe := s.client.TxPipeline()
	for _, f := range []string{"next_retry_at", "response_headers"} {
		if _, ok := fields[f]; !ok {
			pipe.HDel(ctx, key, f)
		}
	}
	pipe.HSet(ctx, key, fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hookline/redis: update attempt: %w", err)
	}
	return nil
}

// ListAttempts returns all attempts for a delivery in ascending attempt
// order.
func (s *Store) ListAttempts(ctx context.Context, deliveryID id.DeliveryID) ([]*webhook.DeliveryAttempt, error) {
	dID := deliveryID.String()
	nums, err := s.client.SMembers(ctx, deliveryAttemptsKey(dID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list attempts: %w", err)
	}

	out := make([]*webhook.DeliveryAttempt, 0, len(nums))
	for _, n := range nums {
		attempt, convErr := strconv.Atoi(n)
		if convErr != nil {
			continue
		}
		vals, getErr := s.client.HGetAll(ctx, attemptKey(dID, attempt)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		a, mapErr := mapToAttempt(vals)
		if mapErr != nil {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Attempt < out[k].Attempt })
	return out, nil
}

// CountAttempts returns the number of attempts recorded for a delivery.
func (s *Store) CountAttempts(ctx context.Context, deliveryID id.DeliveryID) (int, error) {
	count, err := s.client.SCard(ctx, deliveryAttemptsKey(deliveryID.String())).Result()
	if err != nil {
		return 0, fmt.Errorf("hookline/redis: count attempts: %w", err)
	}
	return int(count), nil
}

// ListAttemptsByWebhook returns attempts for a webhook, newest first,
// capped at limit (0 means no cap).
func (s *Store) ListAttemptsByWebhook(ctx context.Context, webhookID id.WebhookID, limit int) ([]*webhook.DeliveryAttempt, error) {
	keys, err := s.client.SMembers(ctx, webhookAttemptsKey(webhookID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: list webhook attempts: %w", err)
	}

	out := make([]*webhook.DeliveryAttempt, 0, len(keys))
	for _, key := range keys {
		vals, getErr := s.client.HGetAll(ctx, key).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		a, mapErr := mapToAttempt(vals)
		if mapErr != nil {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PurgeAttempts removes attempt records created before the given time.
func (s *Store) PurgeAttempts(ctx context.Context, before time.Time) (int64, error) {
	keys, err := s.client.SMembers(ctx, attemptIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("hookline/redis: purge attempts smembers: %w", err)
	}

	var purged int64
	for _, key := range keys {
		vals, getErr := s.client.HGetAll(ctx, key).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, vals["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
		if !createdAt.Before(before) {
			continue
		}

		pipe := s.client.TxPipeline()
		pipe.Del(ctx, key)
		pipe.SRem(ctx, attemptIDsKey, key)
		pipe.SRem(ctx, deliveryAttemptsKey(vals["delivery_id"]), vals["attempt"])
		pipe.SRem(ctx, webhookAttemptsKey(vals["webhook_id"]), key)
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			return purged, fmt.Errorf("hookline/redis: purge attempts del: %w", pErr)
		}
		purged++
	}
	return purged, nil
}

// ──────────────────────────────────────────────────
// Serialization helpers
// ──────────────────────────────────────────────────

func webhookToMap(w *webhook.Webhook) map[string]interface{} {
	events, _ := json.Marshal(w.Events)   //nolint:errcheck // string slice cannot fail
	headers, _ := json.Marshal(w.Headers) //nolint:errcheck // string map cannot fail

	delays := make([]string, len(w.RetryDelays))
	for i, d := range w.RetryDelays {
		delays[i] = d.String()
	}

	return map[string]interface{}{
		"id":           w.ID.String(),
		"name":         w.Name,
		"url":          w.URL,
		"secret":       w.Secret,
		"events":       string(events),
		"active":       strconv.FormatBool(w.Active),
		"max_attempts": strconv.Itoa(w.MaxAttempts),
		"retry_delays": strings.Join(delays, ","),
		"timeout":      w.Timeout.String(),
		"headers":      string(headers),
		"created_at":   w.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   w.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func mapToWebhook(m map[string]string) (*webhook.Webhook, error) {
	wID, err := id.ParseWebhookID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: parse webhook id: %w", err)
	}

	var events []string
	_ = json.Unmarshal([]byte(m["events"]), &events) //nolint:errcheck // best-effort parse from trusted Redis data
	var headers map[string]string
	_ = json.Unmarshal([]byte(m["headers"]), &headers) //nolint:errcheck // best-effort parse from trusted Redis data

	var delays []time.Duration
	if m["retry_delays"] != "" {
		for _, part := range strings.Split(m["retry_delays"], ",") {
			d, parseErr := time.ParseDuration(part)
			if parseErr != nil {
				continue
			}
			delays = append(delays, d)
		}
	}

	active, _ := strconv.ParseBool(m["active"])                   //nolint:errcheck // best-effort parse from trusted Redis data
	maxAttempts, _ := strconv.Atoi(m["max_attempts"])             //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := time.ParseDuration(m["timeout"])                //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	w := &webhook.Webhook{
		ID:          wID,
		Name:        m["name"],
		URL:         m["url"],
		Secret:      m["secret"],
		Events:      events,
		Active:      active,
		MaxAttempts: maxAttempts,
		RetryDelays: delays,
		Timeout:     timeout,
		Headers:     headers,
	}
	w.CreatedAt = createdAt
	w.UpdatedAt = updatedAt
	return w, nil
}

func attemptToMap(a *webhook.DeliveryAttempt) map[string]interface{} {
	m := map[string]interface{}{
		"delivery_id":   a.DeliveryID.String(),
		"webhook_id":    a.WebhookID.String(),
		"event_id":      a.EventID.String(),
		"event_type":    a.EventType,
		"url":           a.URL,
		"payload":       string(a.Payload),
		"signature":     a.Signature,
		"attempt":       strconv.Itoa(a.Attempt),
		"status":        string(a.Status),
		"status_code":   strconv.Itoa(a.StatusCode),
		"response_body": a.ResponseBody,
		"error":         a.Error,
		"duration":      a.Duration.String(),
		"created_at":    a.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    a.UpdatedAt.Format(time.RFC3339Nano),
	}
	if a.NextRetryAt != nil {
		m["next_retry_at"] = a.NextRetryAt.Format(time.RFC3339Nano)
	}
	if len(a.ResponseHeaders) > 0 {
		hdrs, _ := json.Marshal(a.ResponseHeaders) //nolint:errcheck // string map cannot fail to marshal
		m["response_headers"] = string(hdrs)
	}
	return m
}

func mapToAttempt(m map[string]string) (*webhook.DeliveryAttempt, error) {
	dID, err := id.ParseDeliveryID(m["delivery_id"])
	if err != nil {
		return nil, fmt.Errorf("hookline/redis: parse delivery id: %w", err)
	}
	wID, _ := id.ParseWebhookID(m["webhook_id"])                  //nolint:errcheck // best-effort parse from trusted Redis data
	eID, _ := id.ParseEventID(m["event_id"])                      //nolint:errcheck // best-effort parse from trusted Redis data
	attempt, _ := strconv.Atoi(m["attempt"])                      //nolint:errcheck // best-effort parse from trusted Redis data
	statusCode, _ := strconv.Atoi(m["status_code"])               //nolint:errcheck // best-effort parse from trusted Redis data
	duration, _ := time.ParseDuration(m["duration"])              //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	a := &webhook.DeliveryAttempt{
		DeliveryID:   dID,
		WebhookID:    wID,
		EventID:      eID,
		EventType:    m["event_type"],
		URL:          m["url"],
		Payload:      []byte(m["payload"]),
		Signature:    m["signature"],
		Attempt:      attempt,
		Status:       webhook.AttemptStatus(m["status"]),
		StatusCode:   statusCode,
		ResponseBody: m["response_body"],
		Error:        m["error"],
		Duration:     duration,
	}
	a.CreatedAt = createdAt
	a.UpdatedAt = updatedAt

	if v := m["next_retry_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		a.NextRetryAt = &t
	}
	if v := m["response_headers"]; v != "" {
		_ = json.Unmarshal([]byte(v), &a.ResponseHeaders) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	return a, nil
}
