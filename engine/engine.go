package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/backoff"
	"github.com/hookline/hookline/hook"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/job"
	mw "github.com/hookline/hookline/middleware"
	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/queue"
	"github.com/hookline/hookline/schedule"
	"github.com/hookline/hookline/store"
	"github.com/hookline/hookline/webhook"
	"github.com/hookline/hookline/worker"
)

// instrumentationScope is the OTel scope name used when a custom provider
// is supplied.
const instrumentationScope = "github.com/hookline/hookline"

// Engine owns all hookline state: the job registry, the priority queue,
// the hook registry, the worker pool, the recurring scheduler, and the
// optional webhook subsystem. There are no package-level singletons; two
// engines in one process are fully independent.
type Engine struct {
	cfg    hookline.Config
	logger *slog.Logger

	hooks    *hook.Registry
	registry *job.Registry
	queue    *queue.Queue
	bo       backoff.Strategy
	pool     *worker.Pool

	scheduler *schedule.Scheduler

	// Webhook subsystem, wired only when a store is configured.
	store     store.Store
	transport webhook.Transport
	publisher *webhook.Publisher

	extensions []hook.Extension
	mws        []mw.Middleware
	pubOpts    []webhook.PublisherOption
	schedOpts  []schedule.SchedulerOption

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStore enables the webhook subsystem backed by the given store.
// Without a store the engine runs as a pure job engine.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithTransport sets the webhook delivery transport. Defaults to an
// HTTP transport with the default client.
func WithTransport(t webhook.Transport) Option {
	return func(e *Engine) { e.transport = t }
}

// WithExtension registers a lifecycle extension with the engine.
func WithExtension(ext hook.Extension) Option {
	return func(e *Engine) { e.extensions = append(e.extensions, ext) }
}

// WithMiddleware appends middleware to the execution chain, after the
// built-in recover/tracing/metrics/logging/timeout stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m) }
}

// WithBackoff sets the retry backoff strategy. Defaults to the canonical
// retry ladder from backoff.DefaultStrategy().
func WithBackoff(b backoff.Strategy) Option {
	return func(e *Engine) { e.bo = b }
}

// WithSchedulerOptions forwards options to the recurring scheduler.
func WithSchedulerOptions(opts ...schedule.SchedulerOption) Option {
	return func(e *Engine) { e.schedOpts = append(e.schedOpts, opts...) }
}

// WithPublisherOptions forwards options to the webhook publisher.
// Only meaningful together with WithStore.
func WithPublisherOptions(opts ...webhook.PublisherOption) Option {
	return func(e *Engine) { e.pubOpts = append(e.pubOpts, opts...) }
}

// WithTracerProvider sets a custom OTel TracerProvider. When set, the
// tracing middleware uses this provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider. When set, both the
// metrics middleware and the observability extension use this provider
// instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// New creates an Engine from the given configuration. Zero-value config
// fields fall back to DefaultConfig.
func New(cfg hookline.Config, opts ...Option) (*Engine, error) {
	defaults := hookline.DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.DefaultJobTimeout <= 0 {
		cfg.DefaultJobTimeout = defaults.DefaultJobTimeout
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaults.MaxHistory
	}

	eng := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	eng.hooks = hook.NewRegistry(eng.logger)
	for _, ext := range eng.extensions {
		eng.hooks.Register(ext)
	}

	// Register the observability metrics extension.
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter(instrumentationScope + "/observability")
		eng.hooks.Register(observability.NewMetricsExtensionWithMeter(meter))
	} else {
		eng.hooks.Register(observability.NewMetricsExtension())
	}

	eng.registry = job.NewRegistry()
	eng.queue = queue.New(
		queue.WithLogger(eng.logger),
		queue.WithHooks(eng.hooks),
		queue.WithCapacity(cfg.Capacity),
	)

	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationScope))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationScope))
	} else {
		metricsMw = mw.Metrics()
	}

	allMws := make([]mw.Middleware, 0, 5+len(eng.mws))
	allMws = append(allMws,
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Timeout(eng.logger, cfg.DefaultJobTimeout),
	)
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(eng.registry, eng.queue, eng.bo, eng.logger, allMws...)
	eng.pool = worker.NewPool(eng.queue, executor, eng.logger,
		worker.WithPoolConcurrency(cfg.Concurrency),
		worker.WithPollInterval(cfg.PollInterval),
	)

	eng.scheduler = schedule.NewScheduler(eng.queue.Add, eng.hooks, eng.logger, eng.schedOpts...)

	if eng.store != nil {
		if eng.transport == nil {
			eng.transport = webhook.NewHTTPTransport(nil)
		}
		handler := webhook.NewDeliveryHandler(eng.store, eng.transport, eng.hooks, eng.logger)
		if err := eng.registry.Register(job.TypeScheduled, webhook.JobName, handler); err != nil {
			return nil, fmt.Errorf("engine: register delivery handler: %w", err)
		}
		eng.publisher = webhook.NewPublisher(eng.store, eng.queue, eng.logger, eng.pubOpts...)
	}

	return eng, nil
}

// ──────────────────────────────────────────────────
// Registration and enqueue
// ──────────────────────────────────────────────────

// Register registers a handler for the given job type and name.
func (e *Engine) Register(jobType job.Type, name string, h job.Handler) error {
	return e.registry.Register(jobType, name, h)
}

// Enqueue accepts an immediate or scheduled definition into the queue and
// returns its execution ID. Recurring definitions must go through
// RegisterRecurring.
func (e *Engine) Enqueue(ctx context.Context, def job.Definition) (id.ExecutionID, error) {
	if def.Type == job.TypeRecurring {
		return id.Nil, fmt.Errorf("engine: recurring definition %q must be registered via RegisterRecurring", def.JobID)
	}
	return e.queue.Add(ctx, def)
}

// RegisterRecurring registers a recurring definition with the scheduler.
// Instances are enqueued by the scheduler each time the cron expression
// fires, once the engine is started. Fired instances enter the queue as
// scheduled jobs, so the handler must be registered under
// (job.TypeScheduled, def.Name), not job.TypeRecurring.
func (e *Engine) RegisterRecurring(def job.Definition) error {
	return e.scheduler.Register(def)
}

// RemoveRecurring unregisters a recurring entry. It reports whether the
// entry existed.
func (e *Engine) RemoveRecurring(name string) bool {
	return e.scheduler.Remove(name)
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start launches the worker pool and the recurring scheduler.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.pool.Start(ctx); err != nil {
		return fmt.Errorf("engine: start pool: %w", err)
	}
	if err := e.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("engine: start scheduler: %w", err)
	}
	e.logger.Info("engine started",
		slog.Int("concurrency", e.cfg.Concurrency),
		slog.Duration("poll_interval", e.cfg.PollInterval),
	)
	return nil
}

// Stop gracefully shuts the engine down: the scheduler stops firing, the
// queue stops handing out work, and in-flight jobs get until the context
// deadline (or the configured ShutdownTimeout) to finish. Jobs still
// running after that are left to complete on their own; they are logged
// but never killed.
func (e *Engine) Stop(ctx context.Context) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
		defer cancel()
	}

	if err := e.scheduler.Stop(ctx); err != nil {
		e.logger.Error("scheduler stop error", slog.String("error", err.Error()))
	}

	err := e.pool.Stop(ctx)
	e.hooks.EmitShutdown(ctx)
	e.logger.Info("engine stopped")
	return err
}

// ──────────────────────────────────────────────────
// Queue passthrough
// ──────────────────────────────────────────────────

// Status returns the terminal result for an execution, or nil if it has
// not reached a terminal state (or was never seen).
func (e *Engine) Status(execID id.ExecutionID) *job.Result {
	return e.queue.Status(execID)
}

// Stats returns a snapshot of queue counters.
func (e *Engine) Stats() queue.Stats {
	return e.queue.GetStats()
}

// Pause stops handing out queued work. In-flight jobs are unaffected.
func (e *Engine) Pause() { e.queue.Pause() }

// Resume re-enables dequeue after a Pause.
func (e *Engine) Resume() { e.queue.Resume() }

// Cancel removes a pending execution before it is dequeued. It returns
// false for running, finished, or unknown executions.
func (e *Engine) Cancel(ctx context.Context, execID id.ExecutionID) bool {
	return e.queue.Cancel(ctx, execID)
}

// Cleanup trims the completed and failed histories to the configured
// bound and returns the number of records removed.
func (e *Engine) Cleanup() int {
	return e.queue.Cleanup(e.cfg.MaxHistory)
}

// ──────────────────────────────────────────────────
// Subsystem access
// ──────────────────────────────────────────────────

// Queue returns the underlying priority queue.
func (e *Engine) Queue() *queue.Queue { return e.queue }

// Hooks returns the lifecycle hook registry. Register extensions before
// calling Start.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// Registry returns the job handler registry.
func (e *Engine) Registry() *job.Registry { return e.registry }

// Scheduler returns the recurring-job scheduler.
func (e *Engine) Scheduler() *schedule.Scheduler { return e.scheduler }

// Publisher returns the webhook publisher, or nil when no store was
// configured.
func (e *Engine) Publisher() *webhook.Publisher { return e.publisher }

// Store returns the configured store, or nil for a pure job engine.
func (e *Engine) Store() store.Store { return e.store }
