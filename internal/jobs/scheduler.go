// Package jobs runs background work for the cost store on cron schedules.
// It uses robfig/cron with a seconds field.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is a scheduled unit of work. The context is cancelled when the run
// exceeds its timeout or the scheduler stops.
type JobFunc func(ctx context.Context) error

// ErrJobRunning is returned by RunNow when the job is already running.
var ErrJobRunning = errors.New("job is already running")

type registeredJob struct {
	entryID cron.EntryID
	timeout time.Duration
	job     JobFunc
	running sync.Mutex
}

// Scheduler manages background jobs using cron scheduling.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	mu     sync.Mutex
	jobs   map[string]*registeredJob

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new job scheduler with the given logger.
// Overlapping runs of the same job are skipped, whether scheduled or started
// with RunNow, and panics in scheduled runs are recovered.
func NewScheduler(logger *zap.Logger) *Scheduler {
	cronLog := &cronLogger{logger: logger.Named("cron")}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithLogger(cronLog), cron.WithChain(
			cron.Recover(cronLog),
		)),
		logger: logger,
		jobs:   make(map[string]*registeredJob),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the scheduler. Jobs added before this call will begin running.
func (s *Scheduler) Start() {
	s.logger.Info("starting job scheduler", zap.Int("jobs", len(s.GetJobNames())))
	s.cron.Start()
}

// Stop cancels running jobs and returns a context that is done once they have returned.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping job scheduler")
	s.cancel()
	return s.cron.Stop()
}

// AddJob registers a job under a unique name.
// The cronExpr uses six fields with seconds, or a descriptor:
//   - "0 30 2 * * *" - every day at 02:30:00
//   - "@daily"       - every day at midnight
//   - "@every 6h"    - every six hours
//
// A timeout of zero lets a run take as long as it needs.
func (s *Scheduler) AddJob(name string, cronExpr string, timeout time.Duration, job JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	reg := &registeredJob{timeout: timeout, job: job}
	entryID, err := s.cron.AddFunc(cronExpr, func() {
		if err := s.run(name, reg); errors.Is(err, ErrJobRunning) {
			s.logger.Info("skipping scheduled job, previous run still active",
				zap.String("job_name", name))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}

	reg.entryID = entryID
	s.jobs[name] = reg
	s.logger.Info("added scheduled job",
		zap.String("job_name", name),
		zap.String("cron_expr", cronExpr))

	return nil
}

// RunNow runs a registered job once, outside its schedule, and waits for it.
// It returns the job's error, or ErrJobRunning when a run is already active.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	reg, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	return s.run(name, reg)
}

func (s *Scheduler) run(name string, reg *registeredJob) error {
	if !reg.running.TryLock() {
		return fmt.Errorf("job %s: %w", name, ErrJobRunning)
	}
	defer reg.running.Unlock()

	ctx := s.ctx
	if reg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, reg.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info("running scheduled job", zap.String("job_name", name))
	if err := reg.job(ctx); err != nil {
		s.logger.Error("scheduled job failed",
			zap.String("job_name", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return err
	}
	s.logger.Info("completed scheduled job",
		zap.String("job_name", name),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// RemoveJob removes a job by name.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(reg.entryID)
	delete(s.jobs, name)

	s.logger.Info("removed scheduled job",
		zap.String("job_name", name))

	return nil
}

// GetJobNames returns the names of all registered jobs, sorted.
func (s *Scheduler) GetJobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NextRun returns when a job runs next. The zero time means it is not scheduled
// or the scheduler has not been started.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.Lock()
	reg, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return time.Time{}
	}
	return s.cron.Entry(reg.entryID).Next
}

// cronLogger routes cron's own messages to zap
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
