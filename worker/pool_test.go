package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/backoff"
	"github.com/hookline/hookline/hook"
	"github.com/hookline/hookline/job"
	"github.com/hookline/hookline/middleware"
	"github.com/hookline/hookline/queue"
	"github.com/hookline/hookline/worker"
)

func setupTestPool(t *testing.T, concurrency int, pollInterval time.Duration) (
	*worker.Pool, *queue.Queue, *job.Registry,
) {
	t.Helper()
	logger := slog.Default()
	hooks := hook.NewRegistry(logger)
	q := queue.New(queue.WithLogger(logger), queue.WithHooks(hooks))
	reg := job.NewRegistry()

	bo := backoff.NewConstant(10 * time.Millisecond)
	executor := worker.NewExecutor(reg, q, bo, logger, middleware.Recover(logger))

	pool := worker.NewPool(q, executor, logger,
		worker.WithPoolConcurrency(concurrency),
		worker.WithPollInterval(pollInterval),
	)

	return pool, q, reg
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestPool_StartStop(t *testing.T) {
	pool, _, _ := setupTestPool(t, 2, 50*time.Millisecond)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	// Double start should be no-op.
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected double-start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	// Double stop should be no-op.
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected double-stop error: %v", err)
	}
}

func TestPool_ProcessesJob(t *testing.T) {
	pool, q, reg := setupTestPool(t, 1, 10*time.Millisecond)

	var processed atomic.Bool
	err := reg.Register(job.TypeImmediate, "greet", &job.Funcs{
		ExecuteFunc: func(_ context.Context, payload []byte) ([]byte, error) {
			if string(payload) != `{"name":"Alice"}` {
				t.Errorf("payload = %q, want %q", payload, `{"name":"Alice"}`)
			}
			processed.Store(true)
			return []byte("greeted"), nil
		},
	})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}

	execID, err := q.Add(context.Background(), job.Definition{
		JobID:      "greet-1",
		Name:       "greet",
		Type:       job.TypeImmediate,
		Payload:    []byte(`{"name":"Alice"}`),
		MaxRetries: 3,
	})
	if err != nil {
		t.Fatalf("add error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	waitFor(t, processed.Load, "timed out waiting for job to be processed")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}

	res := q.Status(execID)
	if res == nil {
		t.Fatal("expected a result for the execution")
	}
	if !res.Success {
		t.Errorf("result.Success = false, error %q", res.Error)
	}
	if res.State != job.StateCompleted {
		t.Errorf("result.State = %q, want %q", res.State, job.StateCompleted)
	}
	if string(res.Output) != "greeted" {
		t.Errorf("result.Output = %q, want %q", res.Output, "greeted")
	}
}

func TestPool_RetriesThenSucceeds(t *testing.T) {
	pool, q, reg := setupTestPool(t, 1, 10*time.Millisecond)

	var attempts atomic.Int32
	var retries atomic.Int32
	var done atomic.Bool
	err := reg.Register(job.TypeImmediate, "flaky", &job.Funcs{
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			if attempts.Add(1) < 3 {
				return nil, errors.New("transient")
			}
			return []byte("ok"), nil
		},
		OnRetryFunc: func(_ context.Context, _ int) {
			retries.Add(1)
		},
		OnSuccessFunc: func(_ context.Context, _ []byte) {
			done.Store(true)
		},
	})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}

	execID, err := q.Add(context.Background(), job.Definition{
		JobID:      "flaky-1",
		Name:       "flaky",
		Type:       job.TypeImmediate,
		MaxRetries: 3,
	})
	if err != nil {
		t.Fatalf("add error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	waitFor(t, done.Load, "timed out waiting for job to succeed")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}

	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if got := retries.Load(); got != 2 {
		t.Errorf("retries = %d, want 2", got)
	}

	res := q.Status(execID)
	if res == nil || !res.Success {
		t.Fatalf("expected successful final result, got %+v", res)
	}
	if res.RetryCount != 2 {
		t.Errorf("result.RetryCount = %d, want 2", res.RetryCount)
	}
}

func TestPool_ExhaustsRetries(t *testing.T) {
	pool, q, reg := setupTestPool(t, 1, 10*time.Millisecond)

	var attempts atomic.Int32
	var failed atomic.Bool
	err := reg.Register(job.TypeImmediate, "doomed", &job.Funcs{
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			attempts.Add(1)
			return nil, errors.New("always down")
		},
		OnFailureFunc: func(_ context.Context, _ error) {
			failed.Store(true)
		},
	})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}

	execID, err := q.Add(context.Background(), job.Definition{
		JobID:      "doomed-1",
		Name:       "doomed",
		Type:       job.TypeImmediate,
		MaxRetries: 1,
	})
	if err != nil {
		t.Fatalf("add error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	waitFor(t, failed.Load, "timed out waiting for terminal failure")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}

	// Initial attempt plus one retry.
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}

	res := q.Status(execID)
	if res == nil {
		t.Fatal("expected a failure result")
	}
	if res.Success || res.State != job.StateFailed {
		t.Errorf("result = %+v, want terminal failure", res)
	}
	if res.Error != "always down" {
		t.Errorf("result.Error = %q, want %q", res.Error, "always down")
	}
}

func TestPool_ValidationFailureIsTerminal(t *testing.T) {
	pool, q, reg := setupTestPool(t, 1, 10*time.Millisecond)

	var executed atomic.Bool
	var failed atomic.Bool
	err := reg.Register(job.TypeImmediate, "picky", &job.Funcs{
		ValidateFunc: func(_ context.Context, payload []byte) error {
			if len(payload) == 0 {
				return errors.New("payload required")
			}
			return nil
		},
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			executed.Store(true)
			return nil, nil
		},
		OnFailureFunc: func(_ context.Context, _ error) {
			failed.Store(true)
		},
	})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}

	execID, err := q.Add(context.Background(), job.Definition{
		JobID:      "picky-1",
		Name:       "picky",
		Type:       job.TypeImmediate,
		MaxRetries: 5,
	})
	if err != nil {
		t.Fatalf("add error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	waitFor(t, failed.Load, "timed out waiting for validation failure")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}

	if executed.Load() {
		t.Error("handler executed despite failed validation")
	}

	res := q.Status(execID)
	if res == nil {
		t.Fatal("expected a failure result")
	}
	if res.RetryCount != 0 {
		t.Errorf("result.RetryCount = %d, want 0 (no retry budget consumed)", res.RetryCount)
	}
}

func TestPool_NonRetryableErrorSkipsBudget(t *testing.T) {
	pool, q, reg := setupTestPool(t, 1, 10*time.Millisecond)

	var attempts atomic.Int32
	var failed atomic.Bool
	err := reg.Register(job.TypeImmediate, "rejected", &job.Funcs{
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			attempts.Add(1)
			return nil, hookline.NonRetryable(errors.New("endpoint gone"))
		},
		OnFailureFunc: func(_ context.Context, _ error) {
			failed.Store(true)
		},
	})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}

	if _, err := q.Add(context.Background(), job.Definition{
		JobID:      "rejected-1",
		Name:       "rejected",
		Type:       job.TypeImmediate,
		MaxRetries: 5,
	}); err != nil {
		t.Fatalf("add error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	waitFor(t, failed.Load, "timed out waiting for terminal failure")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}

	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestPool_NoHandlerIsTerminal(t *testing.T) {
	pool, q, _ := setupTestPool(t, 1, 10*time.Millisecond)

	execID, err := q.Add(context.Background(), job.Definition{
		JobID:      "orphan-1",
		Name:       "orphan",
		Type:       job.TypeImmediate,
		MaxRetries: 3,
	})
	if err != nil {
		t.Fatalf("add error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	waitFor(t, func() bool { return q.Status(execID) != nil },
		"timed out waiting for failure result")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}

	res := q.Status(execID)
	if res.Success {
		t.Error("expected failure for execution with no registered handler")
	}
}

func TestPool_RecoverMiddlewareCatchesPanic(t *testing.T) {
	pool, q, reg := setupTestPool(t, 1, 10*time.Millisecond)

	var failed atomic.Bool
	err := reg.Register(job.TypeImmediate, "panicky", &job.Funcs{
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			panic("boom")
		},
		OnFailureFunc: func(_ context.Context, _ error) {
			failed.Store(true)
		},
	})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}

	if _, err := q.Add(context.Background(), job.Definition{
		JobID: "panicky-1",
		Name:  "panicky",
		Type:  job.TypeImmediate,
	}); err != nil {
		t.Fatalf("add error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	waitFor(t, failed.Load, "timed out waiting for panic to surface as failure")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}
}

func TestPool_HooksFire(t *testing.T) {
	logger := slog.Default()
	hooks := hook.NewRegistry(logger)
	tracker := &trackingExt{}
	hooks.Register(tracker)

	q := queue.New(queue.WithLogger(logger), queue.WithHooks(hooks))
	reg := job.NewRegistry()
	bo := backoff.NewConstant(10 * time.Millisecond)
	executor := worker.NewExecutor(reg, q, bo, logger)
	pool := worker.NewPool(q, executor, logger,
		worker.WithPoolConcurrency(1),
		worker.WithPollInterval(10*time.Millisecond),
	)

	var processed atomic.Bool
	if err := reg.Register(job.TypeImmediate, "tracked", &job.Funcs{
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			processed.Store(true)
			return nil, nil
		},
	}); err != nil {
		t.Fatalf("register error: %v", err)
	}

	if _, err := q.Add(context.Background(), job.Definition{
		JobID: "tracked-1",
		Name:  "tracked",
		Type:  job.TypeImmediate,
	}); err != nil {
		t.Fatalf("add error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	waitFor(t, processed.Load, "timed out waiting for job")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}

	if !tracker.enqueued.Load() {
		t.Error("expected OnJobEnqueued to fire")
	}
	if !tracker.started.Load() {
		t.Error("expected OnJobStarted to fire")
	}

	waitFor(t, tracker.completed.Load, "expected OnJobCompleted to fire")
}

func TestPool_StopPausesIntake(t *testing.T) {
	pool, q, reg := setupTestPool(t, 1, 10*time.Millisecond)

	if err := reg.Register(job.TypeImmediate, "late", &job.Funcs{
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			return nil, nil
		},
	}); err != nil {
		t.Fatalf("register error: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}

	if !q.Paused() {
		t.Error("expected queue to be paused after pool stop")
	}
}

// A handler that pins its retry delay with hookline.RetryAfter must gate
// the requeue on that delay, not on the executor's backoff strategy.
func TestExecutor_PinnedRetryDelayOverridesBackoff(t *testing.T) {
	logger := slog.Default()
	q := queue.New(queue.WithLogger(logger))
	reg := job.NewRegistry()

	// The strategy alone would park the retry for an hour.
	bo := backoff.NewConstant(time.Hour)
	executor := worker.NewExecutor(reg, q, bo, logger)

	if err := reg.Register(job.TypeImmediate, "pinned", &job.Funcs{
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			return nil, hookline.RetryAfter(20*time.Millisecond, errors.New("flaky"))
		},
	}); err != nil {
		t.Fatalf("register error: %v", err)
	}

	ctx := context.Background()
	if _, err := q.Add(ctx, job.Definition{
		JobID:      "pinned-1",
		Name:       "pinned",
		Type:       job.TypeImmediate,
		MaxRetries: 3,
	}); err != nil {
		t.Fatalf("add error: %v", err)
	}

	exec := q.Next(ctx)
	if exec == nil {
		t.Fatal("expected a pending execution")
	}
	if err := executor.Execute(ctx, exec); err == nil {
		t.Fatal("expected a retry error")
	}

	if got := q.Next(ctx); got != nil {
		t.Fatalf("execution surfaced before its pinned delay: %+v", got)
	}

	deadline := time.After(5 * time.Second)
	for {
		if got := q.Next(ctx); got != nil {
			if got.RetryCount != 1 {
				t.Errorf("RetryCount = %d, want 1", got.RetryCount)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("pinned delay never elapsed; retry still gated by the strategy")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// trackingExt records which hooks fired.
type trackingExt struct {
	enqueued  atomic.Bool
	started   atomic.Bool
	completed atomic.Bool
	failed    atomic.Bool
}

func (e *trackingExt) Name() string { return "tracker" }

func (e *trackingExt) OnJobEnqueued(_ context.Context, _ *job.Execution) error {
	e.enqueued.Store(true)
	return nil
}

func (e *trackingExt) OnJobStarted(_ context.Context, _ *job.Execution) error {
	e.started.Store(true)
	return nil
}

func (e *trackingExt) OnJobCompleted(_ context.Context, _ *job.Execution, _ *job.Result) error {
	e.completed.Store(true)
	return nil
}

func (e *trackingExt) OnJobFailed(_ context.Context, _ *job.Execution, _ error, _ bool) error {
	e.failed.Store(true)
	return nil
}
