package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fluxo/internal/jobs"
)

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// This implementation is suitable for single-instance deployments and
// testing. For multi-instance deployments, migrate to a durable broker.
type Queue struct {
	jobChan   chan *jobs.RecurrenceDueJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	log       zerolog.Logger
	closed    bool

	workerCount int
	maxRetries  int

	// RetryBackoff is the base delay before the first retry; each further
	// retry doubles it. Overridable in tests.
	RetryBackoff time.Duration
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before publishing blocks.
func NewQueue(bufferSize, workerCount, maxRetries int, store jobs.JobStore, log zerolog.Logger) *Queue {
	if workerCount <= 0 {
		workerCount = 5
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Queue{
		jobChan:      make(chan *jobs.RecurrenceDueJob, bufferSize),
		closeChan:    make(chan struct{}),
		store:        store,
		log:          log,
		workerCount:  workerCount,
		maxRetries:   maxRetries,
		RetryBackoff: time.Second,
	}
}

// PublishRecurrenceDue implements the Publisher interface.
// It enqueues a re-fire job for asynchronous processing.
func (q *Queue) PublishRecurrenceDue(ctx context.Context, job *jobs.RecurrenceDueJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.maxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
// It starts consuming jobs from the queue and processes them using the
// provided handler, with up to workerCount concurrent workers.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job, classifying the handler's error into
// defer (throttled), fail-now (permanent) or retry-with-backoff (anything
// else).
func (q *Queue) processJob(ctx context.Context, job *jobs.RecurrenceDueJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.save(ctx, job)

	err := handler(ctx, job)
	if err == nil {
		completedAt := time.Now()
		job.CompletedAt = &completedAt
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		return
	}

	if delay, ok := jobs.AsThrottled(err); ok {
		// Deferral, not failure: the retry budget is untouched.
		job.Status = jobs.JobStatusThrottled
		job.StartedAt = nil
		q.save(ctx, job)
		q.requeueAfter(ctx, job, delay)
		return
	}

	job.Error = err.Error()

	if !jobs.IsPermanent(err) && job.RetryCount < job.MaxRetries {
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		q.save(ctx, job)

		backoff := q.RetryBackoff << (job.RetryCount - 1)
		q.requeueAfter(ctx, job, backoff)
		return
	}

	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.Status = jobs.JobStatusFailed
	q.save(ctx, job)
	q.log.Error().
		Err(err).
		Str("job_id", job.JobID).
		Str("transaction_id", job.TransactionID).
		Str("user_id", job.UserID).
		Int("retries", job.RetryCount).
		Msg("Job failed permanently")
}

// requeueAfter republishes the job once the delay elapses.
func (q *Queue) requeueAfter(ctx context.Context, job *jobs.RecurrenceDueJob, delay time.Duration) {
	time.AfterFunc(delay, func() {
		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := q.PublishRecurrenceDue(ctx, job); err != nil {
			q.log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to requeue job")
		}
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.RecurrenceDueJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
