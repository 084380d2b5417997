package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer          = otel.Tracer("fluxo/scheduler")
	jobMeter           = otel.Meter("fluxo/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs dropped due to full queue"))
)

// WorkerPool manages a pool of concurrent workers that process batch-pass
// jobs. Per-user jobs from different users run in parallel here; the
// recurrence pipeline's per-user throughput cap lives in the processor's
// rate limiter, not in this pool.
type WorkerPool struct {
	workerCount int
	jobDelay    time.Duration
	jobs        chan Job
	log         zerolog.Logger
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewWorkerPool creates a new worker pool with the specified configuration.
// workerCount: number of concurrent workers (goroutines)
// jobDelay: delay between processing jobs (for pacing)
// queueSize: buffer size for the job channel
func NewWorkerPool(workerCount int, jobDelay time.Duration, queueSize int, log zerolog.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: workerCount,
		jobDelay:    jobDelay,
		jobs:        make(chan Job, queueSize),
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	wp.log.Info().Int("workers", wp.workerCount).Msg("Starting worker pool")

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// worker is the main loop for each worker goroutine.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			wp.log.Debug().Int("worker", id).Msg("Worker shutting down")
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}

			wp.processJob(id, job)

			if wp.jobDelay > 0 {
				select {
				case <-time.After(wp.jobDelay):
				case <-wp.ctx.Done():
					return
				}
			}
		}
	}
}

// processJob executes a single job with error handling, logging, and
// telemetry.
func (wp *WorkerPool) processJob(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(wp.ctx, 120*time.Second)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.description", job.Description()),
			attribute.String("job.user_id", job.UserID()),
		),
	)
	defer span.End()

	start := time.Now()

	if err := job.Execute(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		jobDuration.Record(ctx, time.Since(start).Seconds())
		wp.log.Error().
			Err(err).
			Int("worker", workerID).
			Str("job", job.Description()).
			Str("user_id", job.UserID()).
			Msg("Job failed")
		return
	}

	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	jobDuration.Record(ctx, time.Since(start).Seconds())
	wp.log.Info().
		Int("worker", workerID).
		Str("job", job.Description()).
		Str("user_id", job.UserID()).
		Msg("Job completed")
}

// Submit adds a job to the queue for processing.
// Returns an error if the context is cancelled or the queue is full (the
// job is dropped with a metric so full queues stay visible).
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	case wp.jobs <- job:
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1)
		return fmt.Errorf("job queue full, dropping %s for user %s", job.Description(), job.UserID())
	}
}

// SubmitBatch adds multiple jobs to the queue.
func (wp *WorkerPool) SubmitBatch(jobs []Job) {
	submitted := 0
	for _, job := range jobs {
		if err := wp.Submit(job); err != nil {
			wp.log.Warn().Err(err).Str("user_id", job.UserID()).Msg("Failed to submit job")
			continue
		}
		submitted++
	}
	wp.log.Info().Int("submitted", submitted).Int("total", len(jobs)).Msg("Batch submitted to worker pool")
}

// ShutdownWithTimeout shuts down the worker pool with a timeout.
// If workers don't finish within the timeout, it forces shutdown by
// cancelling the context.
func (wp *WorkerPool) ShutdownWithTimeout(timeout time.Duration) {
	wp.log.Info().Dur("timeout", timeout).Msg("Worker pool: initiating graceful shutdown")

	close(wp.jobs)

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.log.Info().Msg("Worker pool: all workers finished gracefully")
	case <-time.After(timeout):
		wp.log.Warn().Msg("Worker pool: timeout reached, forcing shutdown")
		wp.cancel()
	}

	wp.log.Info().Msg("Worker pool: shutdown complete")
}
