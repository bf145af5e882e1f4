package hookline

import "time"

// Config holds engine-wide configuration.
type Config struct {
	// Concurrency is the maximum number of jobs processed concurrently.
	Concurrency int

	// PollInterval is how often idle workers poll for new jobs.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time Stop waits for in-flight jobs
	// to drain before giving up with a warning.
	ShutdownTimeout time.Duration

	// DefaultJobTimeout applies to jobs whose definition carries no
	// per-job timeout.
	DefaultJobTimeout time.Duration

	// MaxHistory bounds the completed and failed result histories. Each
	// history is trimmed independently, oldest completions first.
	MaxHistory int

	// Capacity bounds the pending queue. Zero means unbounded; producers
	// are then never blocked by Add.
	Capacity int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       10,
		PollInterval:      100 * time.Millisecond,
		ShutdownTimeout:   30 * time.Second,
		DefaultJobTimeout: 5 * time.Minute,
		MaxHistory:        1000,
	}
}
