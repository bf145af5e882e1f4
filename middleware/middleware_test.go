package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/job"
	"github.com/hookline/hookline/middleware"
)

func testExec(name string) *job.Execution {
	return &job.Execution{
		Definition:  job.Definition{JobID: "logical", Name: name, Type: job.TypeImmediate},
		ExecutionID: id.NewExecutionID(),
	}
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *job.Execution, next middleware.Handler) ([]byte, error) {
		order = append(order, "mw1-before")
		out, err := next(ctx)
		order = append(order, "mw1-after")
		return out, err
	}

	mw2 := func(ctx context.Context, _ *job.Execution, next middleware.Handler) ([]byte, error) {
		order = append(order, "mw2-before")
		out, err := next(ctx)
		order = append(order, "mw2-after")
		return out, err
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) ([]byte, error) {
		order = append(order, "handler")
		return nil, nil
	}

	if _, err := chain(context.Background(), testExec("test"), handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	handler := func(_ context.Context) ([]byte, error) {
		called = true
		return []byte("out"), nil
	}

	out, err := chain(context.Background(), testExec("empty"), handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
	if string(out) != "out" {
		t.Errorf("output = %q, want %q", out, "out")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ *job.Execution, next middleware.Handler) ([]byte, error) {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := errors.New("handler error")

	_, err := chain(context.Background(), testExec("failing"), func(_ context.Context) ([]byte, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	_, err := mw(context.Background(), testExec("panicky"), func(_ context.Context) ([]byte, error) {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if got := err.Error(); got != "panic in job panicky: test panic" {
		t.Errorf("unexpected error message: %q", got)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	called := false
	_, err := mw(context.Background(), testExec("normal"), func(_ context.Context) ([]byte, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestTimeout_UsesJobBudget(t *testing.T) {
	mw := middleware.Timeout(slog.Default(), time.Hour)

	exec := testExec("slow")
	exec.Timeout = 10 * time.Millisecond

	_, err := mw(context.Background(), exec, func(ctx context.Context) ([]byte, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return nil, nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTimeout_FallsBackToDefault(t *testing.T) {
	mw := middleware.Timeout(slog.Default(), 10*time.Millisecond)

	_, err := mw(context.Background(), testExec("default-budget"), func(ctx context.Context) ([]byte, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return nil, nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestMetrics_PassesThroughOutcome(t *testing.T) {
	mw := middleware.Metrics() // noop instruments without a global provider

	want := errors.New("boom")
	_, err := mw(context.Background(), testExec("metered"), func(_ context.Context) ([]byte, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestTracing_PassesThroughOutput(t *testing.T) {
	mw := middleware.Tracing() // noop tracer without a global provider

	out, err := mw(context.Background(), testExec("traced"), func(_ context.Context) ([]byte, error) {
		return []byte("result"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "result" {
		t.Errorf("output = %q, want %q", out, "result")
	}
}
