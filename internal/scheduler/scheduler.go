package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Trigger binds a schedule to a job provider. When the schedule matches,
// the provider is invoked and its jobs are submitted to the worker pool.
type Trigger struct {
	// Name identifies the trigger in logs and dedup keys.
	Name string

	// Schedule decides when the trigger fires.
	Schedule Schedule

	// Provider builds the batch of jobs for one firing.
	Provider func(ctx context.Context) ([]Job, error)
}

// Scheduler manages periodic execution of independent triggers. Each
// trigger fires at most once per matching minute; batch passes run to
// completion with each job independently succeeding or failing.
type Scheduler struct {
	workerPool   *WorkerPool
	triggers     []Trigger
	runOnStartup bool
	log          zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastRun map[string]string
	mu      sync.Mutex
}

// Config holds configuration for the scheduler.
type Config struct {
	Triggers     []Trigger
	WorkerCount  int
	JobDelay     time.Duration
	QueueSize    int
	RunOnStartup bool
}

// New creates a new scheduler with the given configuration.
func New(config Config, log zerolog.Logger) (*Scheduler, error) {
	if len(config.Triggers) == 0 {
		return nil, fmt.Errorf("at least one trigger is required")
	}
	for _, tr := range config.Triggers {
		if tr.Name == "" || tr.Schedule == nil || tr.Provider == nil {
			return nil, fmt.Errorf("trigger requires a name, schedule and provider")
		}
	}

	workerPool := NewWorkerPool(config.WorkerCount, config.JobDelay, config.QueueSize, log)
	ctx, cancel := context.WithCancel(context.Background())

	for _, tr := range config.Triggers {
		log.Info().Str("trigger", tr.Name).Str("schedule", tr.Schedule.String()).Msg("Trigger registered")
	}

	return &Scheduler{
		workerPool:   workerPool,
		triggers:     config.Triggers,
		runOnStartup: config.RunOnStartup,
		log:          log,
		ctx:          ctx,
		cancel:       cancel,
		lastRun:      make(map[string]string),
	}, nil
}

// Start launches the scheduler and worker pool.
func (s *Scheduler) Start() {
	s.log.Info().Msg("Starting scheduler")

	s.workerPool.Start()

	if s.runOnStartup {
		s.log.Info().Msg("Running initial batch passes on startup")
		for _, tr := range s.triggers {
			trigger := tr
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.runTrigger(trigger)
			}()
		}
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	s.log.Info().Msg("Scheduler started")
}

// scheduleLoop is the main scheduling loop, checking every minute.
func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("Scheduler loop shutting down")
			return

		case now := <-ticker.C:
			for _, tr := range s.triggers {
				if s.shouldRun(tr, now) {
					s.log.Info().Str("trigger", tr.Name).Time("at", now).Msg("Trigger fired")
					s.runTrigger(tr)
				}
			}
		}
	}
}

// shouldRun checks the trigger's schedule against now, firing at most once
// per matching minute.
func (s *Scheduler) shouldRun(tr Trigger, now time.Time) bool {
	if !tr.Schedule.Matches(now) {
		return false
	}

	key := now.Format("2006-01-02-15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRun[tr.Name] == key {
		return false
	}
	s.lastRun[tr.Name] = key
	return true
}

// runTrigger executes the trigger's provider and submits its jobs.
func (s *Scheduler) runTrigger(tr Trigger) {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	jobs, err := tr.Provider(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("trigger", tr.Name).Msg("Failed to build batch")
		return
	}

	if len(jobs) == 0 {
		s.log.Info().Str("trigger", tr.Name).Msg("No jobs to process")
		return
	}

	s.log.Info().Str("trigger", tr.Name).Int("jobs", len(jobs)).Msg("Submitting batch to worker pool")
	s.workerPool.SubmitBatch(jobs)
}

// TriggerNow manually fires the named trigger immediately.
func (s *Scheduler) TriggerNow(name string) {
	for _, tr := range s.triggers {
		if tr.Name == name {
			s.log.Info().Str("trigger", name).Msg("Manual trigger")
			go s.runTrigger(tr)
			return
		}
	}
	s.log.Warn().Str("trigger", name).Msg("Unknown trigger")
}

// Shutdown gracefully stops the scheduler and worker pool.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.log.Info().Msg("Scheduler: initiating graceful shutdown")

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("Scheduler loop stopped gracefully")
	case <-time.After(timeout):
		s.log.Warn().Msg("Timeout waiting for scheduler loop to stop")
	}

	s.workerPool.ShutdownWithTimeout(timeout)

	s.log.Info().Msg("Scheduler: shutdown complete")
}
