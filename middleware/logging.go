package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/hookline/hookline/job"
)

// Logging returns middleware that logs the start and outcome of every
// attempt.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, exec *job.Execution, next Handler) ([]byte, error) {
		logger.Info("job attempt started",
			slog.String("job_name", exec.Name),
			slog.String("job_id", exec.JobID),
			slog.String("execution_id", exec.ExecutionID.String()),
			slog.Int("retry_count", exec.RetryCount),
		)

		start := time.Now()
		out, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job attempt failed",
				slog.String("job_name", exec.Name),
				slog.String("execution_id", exec.ExecutionID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job attempt completed",
				slog.String("job_name", exec.Name),
				slog.String("execution_id", exec.ExecutionID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return out, err
	}
}
