package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeRecurrenceDue represents a due recurring transaction to re-fire.
	JobTypeRecurrenceDue JobType = "recurrence_due"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed and will not be retried.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
	// JobStatusThrottled indicates the job was deferred by the per-user
	// rate limit and will be redelivered. Deferral does not consume the
	// retry budget.
	JobStatusThrottled JobStatus = "throttled"
)

// RecurrenceDueJob is the work item emitted by the dispatcher for one due
// recurring transaction. Delivery is at-least-once; the processor's
// idempotency guard absorbs duplicates.
type RecurrenceDueJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// TransactionID is the recurring transaction to re-fire.
	TransactionID string `json:"transaction_id"`

	// UserID is the owning user, used as the throttling key.
	UserID string `json:"user_id"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Validate checks that the payload is complete. An incomplete payload is
// unrecoverable and must not be retried.
func (j *RecurrenceDueJob) Validate() error {
	if j.TransactionID == "" {
		return errors.New("job payload missing transaction ID")
	}
	if j.UserID == "" {
		return errors.New("job payload missing user ID")
	}
	return nil
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *RecurrenceDueJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *RecurrenceDueJob) GetType() JobType {
	return JobTypeRecurrenceDue
}

// GetStatus implements the Job interface.
func (j *RecurrenceDueJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory,
// Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishRecurrenceDue publishes a recurrence re-fire job.
	PublishRecurrenceDue(ctx context.Context, job *RecurrenceDueJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job. A plain error marks the
// job for retry with backoff; wrap with Permanent to fail immediately, or
// return a *ThrottledError to defer redelivery without consuming retries.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
// Failed jobs remain visible here for operator inspection.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *RecurrenceDueJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*RecurrenceDueJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*RecurrenceDueJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// TransactionID filters jobs by transaction ID.
	TransactionID string

	// UserID filters jobs by owning user.
	UserID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int
}

// PermanentError marks a handler failure as unrecoverable: the queue fails
// the job immediately instead of retrying.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the queue will not retry the job.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ThrottledError signals that the owning user's rate limit is exhausted and
// the job should be redelivered after RetryAfter.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled, retry after %s", e.RetryAfter)
}

// AsThrottled extracts the deferral delay when err is a ThrottledError.
func AsThrottled(err error) (time.Duration, bool) {
	var te *ThrottledError
	if errors.As(err, &te) {
		return te.RetryAfter, true
	}
	return 0, false
}
