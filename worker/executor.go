// Package worker provides the job execution engine — an Executor that
// invokes registered handlers through middleware, and a Pool that
// manages concurrent dispatcher goroutines polling the queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/backoff"
	"github.com/hookline/hookline/job"
	"github.com/hookline/hookline/middleware"
	"github.com/hookline/hookline/queue"
)

// Executor runs a single execution through middleware and the registered
// handler, then routes the outcome: completion, a backoff-gated retry, or
// a terminal failure.
type Executor struct {
	registry *job.Registry
	queue    *queue.Queue
	backoff  backoff.Strategy
	mw       middleware.Middleware
	logger   *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *job.Registry,
	q *queue.Queue,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry: registry,
		queue:    q,
		backoff:  bo,
		mw:       middleware.Chain(mws...),
		logger:   logger,
	}
}

// Execute runs an execution through validation, the middleware chain, and
// the handler.
// On success: records completion and invokes OnSuccess.
// On a retryable failure with budget remaining: gates a retry with backoff
// and invokes OnRetry.
// On validation failure, a non-retryable error, or an exhausted budget:
// records a terminal failure and invokes OnFailure.
func (e *Executor) Execute(ctx context.Context, exec *job.Execution) error {
	handler, ok := e.registry.Get(exec.Type, exec.Name)
	if !ok {
		err := fmt.Errorf("%w: %s/%s", hookline.ErrNoHandler, exec.Type, exec.Name)
		e.queue.FailTerminal(ctx, exec.ExecutionID, err, 0)
		return err
	}

	if valErr := handler.Validate(ctx, exec.Payload); valErr != nil {
		err := fmt.Errorf("%w: %w", hookline.ErrValidationFailed, valErr)
		e.queue.FailTerminal(ctx, exec.ExecutionID, err, 0)
		handler.OnFailure(ctx, err)
		return err
	}

	start := time.Now()

	// The terminal handler that calls the registered job handler.
	terminal := func(ctx context.Context) ([]byte, error) {
		return handler.Execute(ctx, exec.Payload)
	}

	output, err := e.mw(ctx, exec, terminal)
	elapsed := time.Since(start)

	if err != nil {
		return e.handleFailure(ctx, exec, handler, err, elapsed)
	}

	e.queue.Complete(ctx, exec.ExecutionID, output, elapsed)
	handler.OnSuccess(ctx, output)
	return nil
}

// handleFailure records the failed attempt and either schedules a retry
// or finalizes the execution.
func (e *Executor) handleFailure(
	ctx context.Context,
	exec *job.Execution,
	handler job.Handler,
	handlerErr error,
	elapsed time.Duration,
) error {
	if hookline.IsNonRetryable(handlerErr) {
		e.queue.FailTerminal(ctx, exec.ExecutionID, handlerErr, elapsed)
		handler.OnFailure(ctx, handlerErr)

		e.logger.Warn("job failed permanently",
			slog.String("job_id", exec.JobID),
			slog.String("job_name", exec.Name),
			slog.String("execution_id", exec.ExecutionID.String()),
			slog.String("error", handlerErr.Error()),
		)
		return handlerErr
	}

	retryable := e.queue.Fail(ctx, exec.ExecutionID, handlerErr, elapsed)
	if !retryable {
		handler.OnFailure(ctx, handlerErr)

		e.logger.Warn("job failed after exhausting retries",
			slog.String("job_id", exec.JobID),
			slog.String("job_name", exec.Name),
			slog.String("execution_id", exec.ExecutionID.String()),
			slog.Int("retry_count", exec.RetryCount),
			slog.String("error", handlerErr.Error()),
		)
		return handlerErr
	}

	attempt := exec.RetryCount + 1
	delay, pinned := hookline.RetryDelay(handlerErr)
	if !pinned {
		delay = e.backoff.Delay(attempt)
	}
	e.queue.Retry(ctx, exec.ExecutionID, delay)
	handler.OnRetry(ctx, attempt)

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", exec.JobID),
		slog.String("job_name", exec.Name),
		slog.String("execution_id", exec.ExecutionID.String()),
		slog.Int("attempt", attempt),
		slog.Int("max_retries", exec.MaxRetries),
		slog.Duration("delay", delay),
	)

	return fmt.Errorf("job %s retry %d/%d: %w", exec.Name, attempt, exec.MaxRetries, handlerErr)
}
