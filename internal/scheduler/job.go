package scheduler

import "context"

// Job represents a unit of work that can be executed by the worker pool.
// This interface allows for extensibility - different types of jobs can be
// implemented (e.g., report jobs, budget jobs, scan jobs).
type Job interface {
	// Execute runs the job with the given context.
	// Context should be respected for cancellation and timeouts.
	Execute(ctx context.Context) error

	// UserID returns the user ID associated with this job, or an empty
	// string for system-wide jobs. Used for logging and tracking.
	UserID() string

	// Description returns a human-readable description of the job.
	// Used for logging purposes.
	Description() string
}

// FuncJob adapts a plain function into a Job. Useful for system-wide batch
// passes that are not tied to one user.
type FuncJob struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Execute implements Job.
func (j *FuncJob) Execute(ctx context.Context) error {
	return j.Fn(ctx)
}

// UserID implements Job.
func (j *FuncJob) UserID() string {
	return ""
}

// Description implements Job.
func (j *FuncJob) Description() string {
	return j.Name
}
