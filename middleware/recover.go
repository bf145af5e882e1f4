package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/hookline/hookline/job"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace, so a single
// bad handler invocation never crashes the dispatcher loop.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, exec *job.Execution, next Handler) (out []byte, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("job handler panicked",
					slog.String("job_name", exec.Name),
					slog.String("execution_id", exec.ExecutionID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				out = nil
				retErr = fmt.Errorf("panic in job %s: %v", exec.Name, r)
			}
		}()
		return next(ctx)
	}
}
