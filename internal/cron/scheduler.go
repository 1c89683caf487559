package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flemzord/scout/internal/core"
)

// ModuleID identifies the scheduler in the application lifecycle.
const ModuleID core.ModuleID = "cron"

// SchedulerService is the service name of the application's *Scheduler.
const SchedulerService = "cron.scheduler"

// Scheduler manages periodic job execution using cron expressions.
// A per-job mutex taken with TryLock keeps ticks of the same job from
// overlapping.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    []Job
	names   map[string]struct{}
	locks   map[string]*sync.Mutex
	entries map[string]cron.EntryID
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

var (
	_ core.Module  = (*Scheduler)(nil)
	_ core.Starter = (*Scheduler)(nil)
	_ core.Stopper = (*Scheduler)(nil)
)

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		names:   make(map[string]struct{}),
		locks:   make(map[string]*sync.Mutex),
		entries: make(map[string]cron.EntryID),
		logger:  logger,
	}
}

// ModuleInfo implements core.Module so the scheduler can be appended to
// the application lifecycle.
func (s *Scheduler) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: ModuleID}
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered or
// its schedule does not parse.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	if err := ParseSchedule(j.Schedule()); err != nil {
		return fmt.Errorf("cron: job %q: %w", name, err)
	}

	s.names[name] = struct{}{}
	s.locks[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start begins executing registered jobs on their schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(cron.WithParser(parser))

	for _, j := range s.jobs {
		job := j
		id, err := s.cron.AddFunc(job.Schedule(), func() { s.run(s.ctx, job) })
		if err != nil {
			s.cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
		s.entries[job.Name()] = id
	}

	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

// RunNow executes the named job immediately, honouring the no-overlap
// rule. It returns false if the job is unknown or already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) bool {
	s.mu.Lock()
	var job Job
	for _, j := range s.jobs {
		if j.Name() == name {
			job = j
			break
		}
	}
	s.mu.Unlock()

	if job == nil {
		return false
	}
	return s.run(ctx, job)
}

// run executes job unless a previous tick still holds its lock.
func (s *Scheduler) run(ctx context.Context, job Job) bool {
	lock := s.locks[job.Name()]
	if !lock.TryLock() {
		s.logger.Warn("cron: job still running, skipping tick", "job", job.Name())
		return false
	}
	defer lock.Unlock()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("cron: job failed", "job", job.Name(), "error", err)
		return true
	}
	s.logger.Debug("cron: job completed", "job", job.Name(), "duration", time.Since(start))
	return true
}

// NextRuns returns the next scheduled time of each job, keyed by name.
// It is empty before Start.
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time, len(s.entries))
	if s.cron == nil {
		return out
	}
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// JobNames returns the registered job names in sorted order.
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stop shuts down the scheduler, waiting for in-flight jobs.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
