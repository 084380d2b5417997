package inmemory

import (
	"context"
	"fmt"
	"sync"

	"fluxo/internal/jobs"
)

// Store is an in-memory implementation of JobStore.
// It stores jobs in memory and is safe for concurrent use.
// Data is lost on service restart - for persistence, use a database-backed
// store.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.RecurrenceDueJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.RecurrenceDueJob),
	}
}

// SaveJob implements the JobStore interface.
func (s *Store) SaveJob(ctx context.Context, job *jobs.RecurrenceDueJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to shield the stored state from later mutation by the queue.
	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	return nil
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.RecurrenceDueJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the JobStore interface.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.RecurrenceDueJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.RecurrenceDueJob

	for _, job := range s.jobs {
		if filter.TransactionID != "" && job.TransactionID != filter.TransactionID {
			continue
		}
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Ensure Store implements JobStore interface.
var _ jobs.JobStore = (*Store)(nil)
