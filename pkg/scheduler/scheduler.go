package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one scheduled unit of work
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner with per-job timeouts and logging
type Scheduler struct {
	cron    *cron.Cron
	logger  logrus.FieldLogger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]Job
}

// New creates a stopped scheduler. Each run is cancelled after timeout.
func New(logger logrus.FieldLogger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	cronLogger := cron.PrintfLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]Job),
	}
}

// Add registers job under name with a standard cron spec or a descriptor
// such as "@every 5m".
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %s already scheduled", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	s.jobs[name] = job
	return nil
}

// RunNow runs the named job synchronously, outside its schedule
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	log := s.logger.WithField("job", name)
	if err := job(ctx); err != nil {
		log.WithError(err).Error("Scheduled job failed")
		return err
	}
	log.WithField("duration", time.Since(start)).Debug("Scheduled job finished")
	return nil
}

// Start begins running jobs on their schedules
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithField("jobs", len(s.cron.Entries())).Info("Scheduler started")
}

// Stop prevents new runs and waits for running jobs until ctx is done,
// after which their contexts are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}
