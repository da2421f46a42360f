package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/danangw/duitku/internal/jobs"
)

// Store is an in-memory implementation of JobStore, safe for concurrent
// use. State is lost on restart; job tracking is best-effort progress
// reporting, not a durability layer.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.InterpretMessageJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.InterpretMessageJob),
	}
}

func (s *Store) SaveJob(_ context.Context, job *jobs.InterpretMessageJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	return nil
}

func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.InterpretMessageJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.InterpretMessageJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.InterpretMessageJob

	for _, job := range s.jobs {
		if filter.ChatID != 0 && job.ChatID != filter.ChatID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.InterpretMessageJob{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}

	return nil
}

var _ jobs.JobStore = (*Store)(nil)
