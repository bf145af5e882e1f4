package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hookline/hookline/queue"
)

// Pool manages a set of concurrent dispatcher goroutines that poll the
// queue and run executions through the Executor.
type Pool struct {
	queue        *queue.Queue
	executor     *Executor
	concurrency  int
	pollInterval time.Duration
	logger       *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent dispatcher goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPollInterval sets how long an idle dispatcher sleeps between polls.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// NewPool creates a dispatcher pool draining the given queue.
func NewPool(q *queue.Queue, executor *Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	p := &Pool{
		queue:        q,
		executor:     executor,
		concurrency:  10,
		pollInterval: 100 * time.Millisecond,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the dispatcher goroutines. It returns immediately and is
// a no-op when the pool is already running.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})

	p.logger.Info("dispatcher pool starting",
		slog.Int("concurrency", p.concurrency),
		slog.Duration("poll_interval", p.pollInterval),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.dequeueLoop()
	}

	return nil
}

// Stop pauses intake, signals all dispatchers, and waits for in-flight
// executions to drain. If ctx expires first the pool returns anyway and
// logs the abandoned count; running handlers are never force-cancelled,
// they observe shutdown through their own context.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("dispatcher pool stopping")

	p.queue.Pause()
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("dispatcher pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("dispatcher pool shutdown timed out with work in flight",
			slog.Int("in_flight", p.queue.Processing()),
		)
	}

	return nil
}

// dequeueLoop is run by each dispatcher goroutine.
func (p *Pool) dequeueLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		exec := p.queue.Next(context.Background())
		if exec == nil {
			p.sleep()
			continue
		}

		if err := p.executor.Execute(context.Background(), exec); err != nil {
			p.logger.Debug("job execution failed",
				slog.String("job_id", exec.JobID),
				slog.String("job_name", exec.Name),
				slog.String("execution_id", exec.ExecutionID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (p *Pool) sleep() {
	select {
	case <-time.After(p.pollInterval):
	case <-p.stopCh:
	}
}
