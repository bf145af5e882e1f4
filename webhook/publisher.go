package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/job"
)

// TestEventType is the synthetic event type used by SendTest.
const TestEventType = "webhook.test"

// Enqueuer accepts job definitions for execution. *queue.Queue satisfies
// it directly; the engine exposes the same method.
type Enqueuer interface {
	Add(ctx context.Context, def job.Definition) (id.ExecutionID, error)
}

// Publisher fans events out to subscribed webhooks as independent
// delivery jobs. Failures enqueueing one webhook's delivery never affect
// another's; every webhook is settled independently.
type Publisher struct {
	store    Store
	enqueuer Enqueuer
	logger   *slog.Logger

	priority int

	// Per-webhook token buckets. Zero rateLimit disables limiting.
	rateLimit rate.Limit
	rateBurst int
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithDeliveryPriority sets the queue priority of delivery jobs.
func WithDeliveryPriority(p int) PublisherOption {
	return func(pub *Publisher) { pub.priority = p }
}

// WithRateLimit caps deliveries per webhook at r events per second with
// the given burst. Publish blocks on the per-webhook bucket before
// enqueueing; zero r means unlimited.
func WithRateLimit(r rate.Limit, burst int) PublisherOption {
	return func(pub *Publisher) {
		pub.rateLimit = r
		pub.rateBurst = burst
	}
}

// NewPublisher creates a Publisher enqueueing through the given Enqueuer.
func NewPublisher(store Store, enqueuer Enqueuer, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:    store,
		enqueuer: enqueuer,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish enqueues one delivery job per active webhook subscribed to the
// event's type and returns the delivery IDs that were accepted. Webhooks
// are settled independently: when some enqueues fail the rest still go
// out, and the first error is returned alongside the successful IDs.
func (p *Publisher) Publish(ctx context.Context, evt *Event) ([]id.DeliveryID, error) {
	hooks, err := p.store.ListWebhooksByEvent(ctx, evt.Type)
	if err != nil {
		return nil, fmt.Errorf("list webhooks for %q: %w", evt.Type, err)
	}
	if len(hooks) == 0 {
		return nil, nil
	}

	deliveries := make([]id.DeliveryID, len(hooks))
	var g errgroup.Group

	for i, wh := range hooks {
		g.Go(func() error {
			if limiter := p.limiter(wh.ID); limiter != nil {
				if waitErr := limiter.Wait(ctx); waitErr != nil {
					return fmt.Errorf("rate limit wait for webhook %s: %w", wh.ID, waitErr)
				}
			}

			deliveryID, enqErr := p.enqueue(ctx, wh, evt, false)
			if enqErr != nil {
				p.logger.Error("failed to enqueue delivery",
					slog.String("webhook_id", wh.ID.String()),
					slog.String("event_id", evt.ID.String()),
					slog.String("event_type", evt.Type),
					slog.String("error", enqErr.Error()),
				)
				return enqErr
			}
			deliveries[i] = deliveryID
			return nil
		})
	}

	err = g.Wait()

	accepted := deliveries[:0]
	for _, d := range deliveries {
		if !d.IsNil() {
			accepted = append(accepted, d)
		}
	}
	return accepted, err
}

// SendTest enqueues a single-attempt test delivery to the given webhook
// using a synthetic event type. It exercises the same signing and
// transport path as production events but never retries.
func (p *Publisher) SendTest(ctx context.Context, webhookID id.WebhookID) (id.DeliveryID, error) {
	wh, err := p.store.GetWebhook(ctx, webhookID)
	if err != nil {
		return id.Nil, err
	}

	payload, err := json.Marshal(map[string]string{
		"webhook_id": wh.ID.String(),
		"message":    "test delivery",
	})
	if err != nil {
		return id.Nil, fmt.Errorf("build test payload: %w", err)
	}

	evt := NewEvent(TestEventType, payload)
	return p.enqueue(ctx, wh, evt, true)
}

// enqueue builds the delivery job for one webhook and hands it to the
// Enqueuer. The job's retry budget mirrors the webhook's attempt cap so
// the engine and the attempt protocol agree on when a delivery is done.
func (p *Publisher) enqueue(ctx context.Context, wh *Webhook, evt *Event, test bool) (id.DeliveryID, error) {
	deliveryID := id.NewDeliveryID()

	args := DeliveryArgs{
		DeliveryID: deliveryID.String(),
		WebhookID:  wh.ID.String(),
		EventID:    evt.ID.String(),
		EventType:  evt.Type,
		Payload:    evt.Payload,
		Test:       test,
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return id.Nil, fmt.Errorf("encode delivery args: %w", err)
	}

	maxRetries := wh.EffectiveMaxAttempts() - 1
	if test {
		maxRetries = 0
	}

	def := job.Definition{
		JobID:      deliveryID.String(),
		Name:       JobName,
		Type:       job.TypeScheduled,
		Payload:    payload,
		Priority:   p.priority,
		MaxRetries: maxRetries,
		Tags:       []string{"event:" + evt.Type, "webhook:" + wh.Name},
	}

	if _, err := p.enqueuer.Add(ctx, def); err != nil {
		return id.Nil, fmt.Errorf("enqueue delivery for webhook %s: %w", wh.ID, err)
	}

	return deliveryID, nil
}

func (p *Publisher) limiter(webhookID id.WebhookID) *rate.Limiter {
	if p.rateLimit <= 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := webhookID.String()
	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(p.rateLimit, p.rateBurst)
		p.limiters[key] = l
	}
	return l
}
