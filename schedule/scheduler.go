package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/hook"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/job"
)

// EnqueueFunc is the callback the scheduler uses to enqueue fired
// instances. The engine provides the implementation.
type EnqueueFunc func(ctx context.Context, def job.Definition) (id.ExecutionID, error)

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// Scheduler fires registered recurring definitions on a tick loop,
// enqueueing one instance per firing.
type Scheduler struct {
	enqueue EnqueueFunc
	hooks   *hook.Registry
	logger  *slog.Logger

	tickInterval time.Duration

	mu      sync.Mutex
	entries map[string]*Entry

	// parsed caches parsed cron expressions across entries.
	parsedMu sync.RWMutex
	parsed   map[string]cronlib.Schedule

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a Scheduler. hooks may be nil.
func NewScheduler(enqueue EnqueueFunc, hooks *hook.Registry, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		enqueue:      enqueue,
		hooks:        hooks,
		logger:       logger,
		tickInterval: time.Second,
		entries:      make(map[string]*Entry),
		parsed:       make(map[string]cronlib.Schedule),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a recurring definition. The definition must carry type
// recurring and a parseable cron expression; registration fails fast on a
// malformed expression rather than at fire time. Each fire enqueues an
// instance with type scheduled, so handlers resolve under that type.
func (s *Scheduler) Register(def job.Definition) error {
	if def.Type != job.TypeRecurring {
		return fmt.Errorf("schedule: definition %q has type %q, want %q", def.JobID, def.Type, job.TypeRecurring)
	}
	if def.CronExpr == "" {
		return fmt.Errorf("schedule: definition %q has no cron expression", def.JobID)
	}

	sched, err := s.getOrParseSchedule(def.CronExpr)
	if err != nil {
		return fmt.Errorf("schedule: parse %q for %q: %w", def.CronExpr, def.JobID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[def.JobID]; exists {
		return fmt.Errorf("%w: recurring entry %q", hookline.ErrDuplicateEntry, def.JobID)
	}

	s.entries[def.JobID] = &Entry{
		Name:       def.JobID,
		Definition: def,
		Enabled:    true,
		NextRunAt:  sched.Next(time.Now().UTC()),
		schedule:   sched,
	}
	return nil
}

// Remove unregisters an entry. It reports whether the entry existed.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[name]
	delete(s.entries, name)
	return ok
}

// Enable toggles an entry without unregistering it. It returns
// ErrEntryNotFound for unknown names.
func (s *Scheduler) Enable(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %q", hookline.ErrEntryNotFound, name)
	}
	e.Enabled = enabled
	return nil
}

// Entries returns a snapshot of all registered entries.
func (s *Scheduler) Entries() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// Start launches the tick loop. It returns immediately and is a no-op
// when already running.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.tickLoop()

	s.logger.Info("recurring scheduler started",
		slog.Duration("tick_interval", s.tickInterval),
		slog.Int("entries", len(s.entries)),
	)
	return nil
}

// Stop signals the scheduler and waits for the tick loop to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("recurring scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	now := time.Now().UTC()

	s.mu.Lock()
	due := make([]*Entry, 0)
	for _, e := range s.entries {
		if e.Enabled && !e.NextRunAt.After(now) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.fireEntry(context.Background(), e, now)
	}
}

// fireEntry enqueues one instance of the entry's definition and advances
// its schedule. Instances go in as scheduled jobs so they take the
// ordinary priority path; the recurring type stays on the registered
// template only.
func (s *Scheduler) fireEntry(ctx context.Context, e *Entry, now time.Time) {
	instance := e.Definition
	instance.Type = job.TypeScheduled
	instance.Delay = 0
	instance.CronExpr = ""

	execID, err := s.enqueue(ctx, instance)
	if err != nil {
		s.logger.Error("recurring enqueue error",
			slog.String("entry", e.Name),
			slog.String("job_name", e.Definition.Name),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	e.LastRunAt = &now
	e.NextRunAt = e.schedule.Next(now)
	s.mu.Unlock()

	if s.hooks != nil {
		s.hooks.EmitRecurringFired(ctx, e.Name, execID)
	}

	s.logger.Info("recurring entry fired",
		slog.String("entry", e.Name),
		slog.String("job_name", e.Definition.Name),
		slog.String("execution_id", execID.String()),
	)
}

// getOrParseSchedule caches parsed cron expressions.
func (s *Scheduler) getOrParseSchedule(expr string) (cronlib.Schedule, error) {
	s.parsedMu.RLock()
	sched, ok := s.parsed[expr]
	s.parsedMu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}

	s.parsedMu.Lock()
	s.parsed[expr] = sched
	s.parsedMu.Unlock()
	return sched, nil
}
