package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/hook"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/job"
)

// JobName is the registry name the delivery handler is registered under.
const JobName = "webhook.delivery"

// DeliveryArgs is the job payload for one delivery: which event goes to
// which webhook, under which delivery ID. Every retry of the job carries
// the same args, so attempt records accumulate under one DeliveryID.
type DeliveryArgs struct {
	DeliveryID string          `json:"delivery_id"`
	WebhookID  string          `json:"webhook_id"`
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`

	// Test marks a manual test delivery: the subscription check is skipped
	// and exactly one attempt is made regardless of the webhook's retry
	// configuration.
	Test bool `json:"test,omitempty"`
}

// DeliveryHandler is the job.Handler that performs webhook deliveries.
// Each Execute makes exactly one signed HTTP POST attempt and persists a
// DeliveryAttempt record for it; retry orchestration stays with the
// engine.
type DeliveryHandler struct {
	store     Store
	transport Transport
	hooks     *hook.Registry
	logger    *slog.Logger
}

var _ job.Handler = (*DeliveryHandler)(nil)

// NewDeliveryHandler creates a delivery handler. hooks may be nil.
func NewDeliveryHandler(store Store, transport Transport, hooks *hook.Registry, logger *slog.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		store:     store,
		transport: transport,
		hooks:     hooks,
		logger:    logger,
	}
}

// Validate implements job.Handler. It rejects payloads that do not decode
// into complete DeliveryArgs.
func (h *DeliveryHandler) Validate(_ context.Context, payload []byte) error {
	var args DeliveryArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return fmt.Errorf("decode delivery args: %w", err)
	}
	if _, err := id.ParseDeliveryID(args.DeliveryID); err != nil {
		return err
	}
	if _, err := id.ParseWebhookID(args.WebhookID); err != nil {
		return err
	}
	if _, err := id.ParseEventID(args.EventID); err != nil {
		return err
	}
	if args.EventType == "" {
		return fmt.Errorf("delivery %s: event type is required", args.DeliveryID)
	}
	return nil
}

// Execute implements job.Handler: one signed POST attempt.
//
// A webhook that is missing, inactive, or not subscribed to the event
// type is a non-retryable rejection, reported before any attempt record
// is written. Otherwise the attempt is persisted as pending, sent, and
// updated with the outcome. A failed attempt returns an error so the
// engine schedules a retry; once the webhook's attempt cap is reached the
// error is marked non-retryable.
func (h *DeliveryHandler) Execute(ctx context.Context, payload []byte) ([]byte, error) {
	var args DeliveryArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, hookline.NonRetryable(fmt.Errorf("decode delivery args: %w", err))
	}

	deliveryID, err := id.ParseDeliveryID(args.DeliveryID)
	if err != nil {
		return nil, hookline.NonRetryable(err)
	}
	webhookID, err := id.ParseWebhookID(args.WebhookID)
	if err != nil {
		return nil, hookline.NonRetryable(err)
	}
	eventID, err := id.ParseEventID(args.EventID)
	if err != nil {
		return nil, hookline.NonRetryable(err)
	}

	wh, err := h.store.GetWebhook(ctx, webhookID)
	if err != nil {
		return nil, hookline.NonRetryable(err)
	}
	if !wh.Active {
		return nil, hookline.NonRetryable(fmt.Errorf("%w: %s", hookline.ErrWebhookInactive, wh.ID))
	}
	if !args.Test && !wh.SubscribesTo(args.EventType) {
		return nil, hookline.NonRetryable(fmt.Errorf("%w: webhook %s does not subscribe to %q",
			hookline.ErrNotSubscribed, wh.ID, args.EventType))
	}

	prior, err := h.store.CountAttempts(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	attemptNo := prior + 1

	now := time.Now().UTC()
	timestamp := now.Unix()
	signature := Sign(wh.Secret, timestamp, args.Payload)

	rec := &DeliveryAttempt{
		Entity:     hookline.NewEntity(),
		DeliveryID: deliveryID,
		WebhookID:  wh.ID,
		EventID:    eventID,
		EventType:  args.EventType,
		URL:        wh.URL,
		Payload:    args.Payload,
		Signature:  signature,
		Attempt:    attemptNo,
		Status:     AttemptPending,
	}
	if err := h.store.CreateAttempt(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist attempt: %w", err)
	}

	headers := make(map[string]string, len(wh.Headers)+5)
	for k, v := range wh.Headers {
		headers[k] = v
	}
	headers["Content-Type"] = "application/json"
	headers["X-Webhook-Event"] = args.EventType
	headers["X-Webhook-Timestamp"] = strconv.FormatInt(timestamp, 10)
	headers["X-Webhook-Signature"] = signature
	headers["X-Webhook-ID"] = args.EventID

	start := time.Now()
	resp, sendErr := h.transport.Send(ctx, wh.URL, "POST", args.Payload, headers, wh.EffectiveTimeout())
	rec.Duration = time.Since(start)
	rec.Touch()

	if sendErr == nil && resp.StatusCode < 400 {
		rec.Status = AttemptSuccess
		rec.StatusCode = resp.StatusCode
		rec.ResponseBody = string(resp.Body)
		rec.ResponseHeaders = flattenHeaders(resp.Headers)

		if updateErr := h.store.UpdateAttempt(ctx, rec); updateErr != nil {
			h.logger.Error("failed to record successful attempt",
				slog.String("delivery_id", rec.DeliveryID.String()),
				slog.Int("attempt", rec.Attempt),
				slog.String("error", updateErr.Error()),
			)
		}
		h.emitAttempted(ctx, rec, true)

		return resp.Body, nil
	}

	rec.Status = AttemptFailed
	var attemptErr error
	if sendErr != nil {
		attemptErr = sendErr
		rec.Error = sendErr.Error()
	} else {
		attemptErr = fmt.Errorf("%w: webhook %s answered %d", hookline.ErrDeliveryRejected, wh.ID, resp.StatusCode)
		rec.StatusCode = resp.StatusCode
		rec.ResponseBody = string(resp.Body)
		rec.ResponseHeaders = flattenHeaders(resp.Headers)
		rec.Error = attemptErr.Error()
	}

	maxAttempts := wh.EffectiveMaxAttempts()
	if args.Test {
		maxAttempts = 1
	}
	wait := retryDelay(wh.EffectiveRetryDelays(), attemptNo)
	if attemptNo < maxAttempts {
		next := now.Add(wait)
		rec.NextRetryAt = &next
	}

	if updateErr := h.store.UpdateAttempt(ctx, rec); updateErr != nil {
		h.logger.Error("failed to record failed attempt",
			slog.String("delivery_id", rec.DeliveryID.String()),
			slog.Int("attempt", rec.Attempt),
			slog.String("error", updateErr.Error()),
		)
	}
	h.emitAttempted(ctx, rec, false)

	if attemptNo >= maxAttempts {
		return nil, hookline.NonRetryable(
			fmt.Errorf("delivery %s permanently failed after %d attempts: %w", rec.DeliveryID, attemptNo, attemptErr))
	}

	// Pin the gate to the webhook's ladder so the dispatcher retries when
	// the recorded NextRetryAt says it will.
	return nil, hookline.RetryAfter(wait,
		fmt.Errorf("delivery %s attempt %d/%d: %w", rec.DeliveryID, attemptNo, maxAttempts, attemptErr))
}

// OnSuccess implements job.Handler.
func (h *DeliveryHandler) OnSuccess(_ context.Context, _ []byte) {}

// OnFailure implements job.Handler.
func (h *DeliveryHandler) OnFailure(_ context.Context, err error) {
	h.logger.Warn("webhook delivery abandoned", slog.String("error", err.Error()))
}

// OnRetry implements job.Handler.
func (h *DeliveryHandler) OnRetry(_ context.Context, attempt int) {
	h.logger.Debug("webhook delivery retry scheduled", slog.Int("attempt", attempt))
}

func (h *DeliveryHandler) emitAttempted(ctx context.Context, rec *DeliveryAttempt, success bool) {
	if h.hooks == nil {
		return
	}
	h.hooks.EmitDeliveryAttempted(ctx, rec.DeliveryID, rec.WebhookID, rec.EventType, rec.Attempt, success, rec.StatusCode)
}

// retryDelay picks the delay after the given 1-indexed failed attempt,
// clamped to the last rung of the ladder.
func retryDelay(delays []time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(delays) {
		attempt = len(delays)
	}
	return delays[attempt-1]
}

// flattenHeaders keeps the first value of each response header so the
// attempt record stays a flat string map.
func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
