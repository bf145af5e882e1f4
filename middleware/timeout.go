package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/hookline/hookline/job"
)

// Timeout returns middleware that enforces a per-attempt execution deadline.
// The job's own Timeout wins when set; otherwise defaultTimeout applies.
// When the deadline is exceeded the context is cancelled and the handler
// should return context.DeadlineExceeded.
func Timeout(logger *slog.Logger, defaultTimeout time.Duration) Middleware {
	return func(ctx context.Context, exec *job.Execution, next Handler) ([]byte, error) {
		budget := exec.Timeout
		if budget <= 0 {
			budget = defaultTimeout
		}
		if budget > 0 {
			logger.Debug("job attempt deadline set",
				slog.String("execution_id", exec.ExecutionID.String()),
				slog.Duration("timeout", budget),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, budget)
			defer cancel()
		}
		return next(ctx)
	}
}
