package engine_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/backoff"
	"github.com/hookline/hookline/engine"
	"github.com/hookline/hookline/job"
	"github.com/hookline/hookline/schedule"
	"github.com/hookline/hookline/store/memory"
	"github.com/hookline/hookline/webhook"
)

func testConfig() hookline.Config {
	cfg := hookline.DefaultConfig()
	cfg.Concurrency = 2
	cfg.PollInterval = 5 * time.Millisecond
	cfg.ShutdownTimeout = 3 * time.Second
	return cfg
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting: " + msg)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func stopEngine(t *testing.T, eng *engine.Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := eng.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// ──────────────────────────────────────────────────
// End-to-end: Register → Enqueue → Process
// ──────────────────────────────────────────────────

func TestEngine_EndToEnd_RegisterEnqueueProcess(t *testing.T) {
	eng, err := engine.New(testConfig(), engine.WithLogger(slog.Default()))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	var processed atomic.Bool
	err = eng.Register(job.TypeImmediate, "send-email", &job.Funcs{
		ExecuteFunc: func(_ context.Context, payload []byte) ([]byte, error) {
			processed.Store(true)
			return []byte(`sent to ` + string(payload)), nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	execID, err := eng.Enqueue(context.Background(), job.Definition{
		JobID:   "email-1",
		Name:    "send-email",
		Type:    job.TypeImmediate,
		Payload: []byte("alice@example.com"),
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if startErr := eng.Start(context.Background()); startErr != nil {
		t.Fatalf("Start: %v", startErr)
	}

	waitFor(t, processed.Load, "job to be processed")
	waitFor(t, func() bool { return eng.Status(execID) != nil }, "terminal result")

	res := eng.Status(execID)
	if !res.Success {
		t.Errorf("result.Success = false, error %q", res.Error)
	}
	if res.State != job.StateCompleted {
		t.Errorf("result.State = %q, want %q", res.State, job.StateCompleted)
	}
	if string(res.Output) != "sent to alice@example.com" {
		t.Errorf("result.Output = %q", res.Output)
	}

	stats := eng.Stats()
	if stats.Completed != 1 {
		t.Errorf("stats.Completed = %d, want 1", stats.Completed)
	}

	stopEngine(t, eng)
}

// ──────────────────────────────────────────────────
// Ordering
// ──────────────────────────────────────────────────

func TestEngine_PriorityOrdering(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 1

	eng, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	var mu sync.Mutex
	var order []string
	err = eng.Register(job.TypeScheduled, "ranked", &job.Funcs{
		ExecuteFunc: func(_ context.Context, payload []byte) ([]byte, error) {
			mu.Lock()
			order = append(order, string(payload))
			mu.Unlock()
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	enqueue := func(label string, priority int) {
		t.Helper()
		_, addErr := eng.Enqueue(context.Background(), job.Definition{
			JobID:    label,
			Name:     "ranked",
			Type:     job.TypeScheduled,
			Payload:  []byte(label),
			Priority: priority,
		})
		if addErr != nil {
			t.Fatalf("Enqueue %s: %v", label, addErr)
		}
	}

	// Lower numeric priority wins even when enqueued later.
	enqueue("low", 5)
	enqueue("high", 1)

	if startErr := eng.Start(context.Background()); startErr != nil {
		t.Fatalf("Start: %v", startErr)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, "both jobs to run")
	stopEngine(t, eng)

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "high" || order[1] != "low" {
		t.Errorf("processing order = %v, want [high low]", order)
	}
}

func TestEngine_ImmediatePreemptsQueue(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 1

	eng, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	var mu sync.Mutex
	var order []string
	record := &job.Funcs{
		ExecuteFunc: func(_ context.Context, payload []byte) ([]byte, error) {
			mu.Lock()
			order = append(order, string(payload))
			mu.Unlock()
			return nil, nil
		},
	}
	if err := eng.Register(job.TypeScheduled, "bulk", record); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := eng.Register(job.TypeImmediate, "urgent", record); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := range 3 {
		_, addErr := eng.Enqueue(context.Background(), job.Definition{
			JobID:   fmt.Sprintf("bulk-%d", i),
			Name:    "bulk",
			Type:    job.TypeScheduled,
			Payload: []byte(fmt.Sprintf("bulk-%d", i)),
		})
		if addErr != nil {
			t.Fatalf("Enqueue: %v", addErr)
		}
	}
	_, err = eng.Enqueue(context.Background(), job.Definition{
		JobID:   "urgent-1",
		Name:    "urgent",
		Type:    job.TypeImmediate,
		Payload: []byte("urgent-1"),
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if startErr := eng.Start(context.Background()); startErr != nil {
		t.Fatalf("Start: %v", startErr)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 4
	}, "all jobs to run")
	stopEngine(t, eng)

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "urgent-1" {
		t.Errorf("first processed = %q, want urgent-1 (order %v)", order[0], order)
	}
}

// ──────────────────────────────────────────────────
// Retry and cancellation
// ──────────────────────────────────────────────────

func TestEngine_RetryUntilSuccess(t *testing.T) {
	eng, err := engine.New(testConfig(),
		engine.WithBackoff(backoff.NewConstant(10*time.Millisecond)),
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	var attempts atomic.Int32
	err = eng.Register(job.TypeImmediate, "flaky", &job.Funcs{
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			if attempts.Add(1) < 3 {
				return nil, errors.New("upstream unavailable")
			}
			return []byte("ok"), nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	execID, err := eng.Enqueue(context.Background(), job.Definition{
		JobID:      "flaky-1",
		Name:       "flaky",
		Type:       job.TypeImmediate,
		MaxRetries: 3,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if startErr := eng.Start(context.Background()); startErr != nil {
		t.Fatalf("Start: %v", startErr)
	}
	waitFor(t, func() bool { return eng.Status(execID) != nil }, "terminal result")
	stopEngine(t, eng)

	res := eng.Status(execID)
	if !res.Success {
		t.Fatalf("expected success after retries, got error %q", res.Error)
	}
	if res.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", res.RetryCount)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestEngine_CancelPendingExecution(t *testing.T) {
	eng, err := engine.New(testConfig())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if err := eng.Register(job.TypeScheduled, "later", &job.Funcs{
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) { return nil, nil },
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	execID, err := eng.Enqueue(context.Background(), job.Definition{
		JobID: "later-1",
		Name:  "later",
		Type:  job.TypeScheduled,
		Delay: time.Hour,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if !eng.Cancel(context.Background(), execID) {
		t.Fatal("Cancel returned false for pending execution")
	}
	if eng.Cancel(context.Background(), execID) {
		t.Fatal("second Cancel returned true")
	}
	if res := eng.Status(execID); res != nil {
		t.Errorf("cancelled execution has terminal result %+v", res)
	}
}

func TestEngine_EnqueueRejectsRecurring(t *testing.T) {
	eng, err := engine.New(testConfig())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	_, err = eng.Enqueue(context.Background(), job.Definition{
		JobID:    "nightly",
		Name:     "report",
		Type:     job.TypeRecurring,
		CronExpr: "@daily",
	})
	if err == nil {
		t.Fatal("expected error enqueuing a recurring definition")
	}
}

// ──────────────────────────────────────────────────
// Recurring
// ──────────────────────────────────────────────────

func TestEngine_RecurringFiresInstances(t *testing.T) {
	eng, err := engine.New(testConfig(),
		engine.WithSchedulerOptions(schedule.WithTickInterval(10*time.Millisecond)),
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	var fired atomic.Int32
	err = eng.Register(job.TypeScheduled, "heartbeat", &job.Funcs{
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			fired.Add(1)
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	err = eng.RegisterRecurring(job.Definition{
		JobID:    "heartbeat",
		Name:     "heartbeat",
		Type:     job.TypeRecurring,
		CronExpr: "@every 25ms",
	})
	if err != nil {
		t.Fatalf("RegisterRecurring: %v", err)
	}

	if startErr := eng.Start(context.Background()); startErr != nil {
		t.Fatalf("Start: %v", startErr)
	}
	waitFor(t, func() bool { return fired.Load() >= 2 }, "recurring instances")
	stopEngine(t, eng)

	if !eng.RemoveRecurring("heartbeat") {
		t.Error("RemoveRecurring returned false")
	}
}

// ──────────────────────────────────────────────────
// Pause, resume, cleanup
// ──────────────────────────────────────────────────

func TestEngine_PauseHoldsWork(t *testing.T) {
	eng, err := engine.New(testConfig())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	var processed atomic.Int32
	if err := eng.Register(job.TypeImmediate, "work", &job.Funcs{
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			processed.Add(1)
			return nil, nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	eng.Pause()
	if _, err := eng.Enqueue(context.Background(), job.Definition{
		JobID: "work-1", Name: "work", Type: job.TypeImmediate,
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if startErr := eng.Start(context.Background()); startErr != nil {
		t.Fatalf("Start: %v", startErr)
	}
	time.Sleep(50 * time.Millisecond)
	if processed.Load() != 0 {
		t.Fatal("paused engine processed work")
	}

	eng.Resume()
	waitFor(t, func() bool { return processed.Load() == 1 }, "resumed work")
	stopEngine(t, eng)
}

func TestEngine_CleanupTrimsHistory(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHistory = 1

	eng, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if err := eng.Register(job.TypeImmediate, "quick", &job.Funcs{
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) { return nil, nil },
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := range 3 {
		if _, addErr := eng.Enqueue(context.Background(), job.Definition{
			JobID: fmt.Sprintf("quick-%d", i), Name: "quick", Type: job.TypeImmediate,
		}); addErr != nil {
			t.Fatalf("Enqueue: %v", addErr)
		}
	}

	if startErr := eng.Start(context.Background()); startErr != nil {
		t.Fatalf("Start: %v", startErr)
	}
	waitFor(t, func() bool { return eng.Stats().Completed == 3 }, "all jobs to finish")
	stopEngine(t, eng)

	if removed := eng.Cleanup(); removed != 2 {
		t.Errorf("Cleanup removed %d records, want 2", removed)
	}
	if got := eng.Stats().Completed; got != 1 {
		t.Errorf("stats.Completed after cleanup = %d, want 1", got)
	}
}

// ──────────────────────────────────────────────────
// Webhook subsystem wiring
// ──────────────────────────────────────────────────

// okTransport accepts every delivery with 200.
type okTransport struct {
	calls atomic.Int32
}

func (o *okTransport) Send(_ context.Context, _, _ string, _ []byte, _ map[string]string, _ time.Duration) (*webhook.Response, error) {
	o.calls.Add(1)
	return &webhook.Response{StatusCode: 200, Body: []byte("ok")}, nil
}

func TestEngine_WebhookDeliveryEndToEnd(t *testing.T) {
	st := memory.New()
	transport := &okTransport{}

	eng, err := engine.New(testConfig(),
		engine.WithStore(st),
		engine.WithTransport(transport),
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if eng.Publisher() == nil {
		t.Fatal("Publisher is nil with a store configured")
	}

	wh := webhook.New("orders", "https://example.com/hook", "s3cret", "order.created")
	if err := st.CreateWebhook(context.Background(), wh); err != nil {
		t.Fatalf("CreateWebhook: %v", err)
	}

	if startErr := eng.Start(context.Background()); startErr != nil {
		t.Fatalf("Start: %v", startErr)
	}

	evt := webhook.NewEvent("order.created", []byte(`{"order_id":42}`))
	deliveries, err := eng.Publisher().Publish(context.Background(), evt)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(deliveries))
	}

	waitFor(t, func() bool { return transport.calls.Load() == 1 }, "delivery to go out")

	var attempts []*webhook.DeliveryAttempt
	waitFor(t, func() bool {
		attempts, _ = st.ListAttempts(context.Background(), deliveries[0])
		return len(attempts) == 1 && attempts[0].Status != webhook.AttemptPending
	}, "attempt record")
	stopEngine(t, eng)

	if attempts[0].Status != webhook.AttemptSuccess {
		t.Errorf("attempt status = %q, want %q", attempts[0].Status, webhook.AttemptSuccess)
	}
	if attempts[0].StatusCode != 200 {
		t.Errorf("attempt status code = %d, want 200", attempts[0].StatusCode)
	}
	if attempts[0].Signature == "" {
		t.Error("attempt recorded without a signature")
	}
}
