// Package scheduler runs the configured publish jobs, and housekeeping such
// as audit log pruning, on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/linepush/internal/infrastructure/config"
)

// Domain-specific errors for scheduler operations.
var (
	// ErrDuplicateJob is returned when a job name is registered twice.
	ErrDuplicateJob = errors.New("scheduler: duplicate job name")

	// ErrInvalidSchedule is returned when a cron expression cannot be parsed.
	ErrInvalidSchedule = errors.New("scheduler: invalid schedule")

	// ErrJobNotFound is returned by RunNow for an unknown job.
	ErrJobNotFound = errors.New("scheduler: job not found")
)

// Logger is the logging surface the scheduler needs.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher sends measurements by id. *pipeline.Pipeline satisfies it.
type Publisher interface {
	Publish(ctx context.Context, id string) error
	PublishBatch(ctx context.Context, ids []string) error
}

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// JobStatus reports one job for the status API.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	NextRun   time.Time `json:"next_run,omitempty"`
}

type job struct {
	name     string
	schedule string
	fn       JobFunc
	entry    cron.EntryID

	mu        sync.Mutex
	runs      int
	failures  int
	lastRun   time.Time
	lastError string
}

// Scheduler wraps robfig/cron with named jobs and a shared context that is
// cancelled on Stop.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - A job never overlaps with itself; a tick that arrives while the
//     previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*job
}

// New creates a stopped scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		logger: noopLogger{},
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*job),
	}
	cl := cronLogger{s: s}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// SetLogger sets the logger used for job outcomes.
func (s *Scheduler) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

func (s *Scheduler) getLogger() Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

// Add registers fn under name on a standard cron schedule (five fields or
// a descriptor such as "@every 30s" or "@daily").
func (s *Scheduler) Add(name, schedule string, fn JobFunc) error {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateJob, name)
	}

	j := &job{name: name, schedule: schedule, fn: fn}
	j.entry = s.cron.Schedule(sched, cron.FuncJob(func() { s.run(j) }))
	s.jobs[name] = j
	return nil
}

// AddPublishJob registers a configured publish job. A batch job sends its
// measurements as one payload; otherwise each is published in order and a
// failure does not stop the rest.
func (s *Scheduler) AddPublishJob(cfg config.PublishJobConfig, p Publisher) error {
	ids := append([]string(nil), cfg.Measurements...)

	fn := func(ctx context.Context) error {
		if cfg.Batch {
			return p.PublishBatch(ctx, ids)
		}
		var errs []error
		for _, id := range ids {
			if err := p.Publish(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
			}
		}
		return errors.Join(errs...)
	}

	return s.Add(cfg.Name, cfg.Schedule, fn)
}

// run executes one job and records the outcome.
func (s *Scheduler) run(j *job) {
	start := time.Now()
	err := j.fn(s.ctx)

	j.mu.Lock()
	j.runs++
	j.lastRun = start
	j.lastError = ""
	if err != nil {
		j.failures++
		j.lastError = err.Error()
	}
	j.mu.Unlock()

	logger := s.getLogger()
	if err != nil {
		logger.Warn("scheduled job failed",
			"job", j.name,
			"duration", time.Since(start),
			"error", err,
		)
		return
	}
	logger.Debug("scheduled job completed",
		"job", j.name,
		"duration", time.Since(start),
	)
}

// RunNow executes a job immediately on the caller's goroutine, outside the
// cron schedule. The job's context is ctx.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrJobNotFound, name)
	}
	return j.fn(ctx)
}

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.getLogger().Info("scheduler started", "jobs", s.Len())
}

// Stop prevents new runs, cancels the context passed to running jobs and
// waits for them to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.getLogger().Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Jobs returns the status of every job, sorted by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.RUnlock()

	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		st := JobStatus{
			Name:      j.name,
			Schedule:  j.schedule,
			Runs:      j.runs,
			Failures:  j.failures,
			LastRun:   j.lastRun,
			LastError: j.lastError,
		}
		j.mu.Unlock()
		st.NextRun = s.cron.Entry(j.entry).Next
		out = append(out, st)
	}

	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	s *Scheduler
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.getLogger().Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.getLogger().Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
