// Package jobs defines the asynchronous interpretation queue: one job per
// incoming user message, processed off the webhook path.
package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeInterpretMessage represents one user message awaiting
	// interpretation and ledger recording.
	JobTypeInterpretMessage JobType = "interpret_message"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// InterpretMessageJob carries one user message through the pipeline. A job
// that fails after its ledger write started is never re-enqueued, since a
// replay could double-book entries; MaxRetries therefore defaults to zero
// and stays zero for interpretation work.
type InterpretMessageJob struct {
	JobID string `json:"job_id"`

	// ChatID identifies the conversation to reply into.
	ChatID int64 `json:"chat_id"`

	// Text is the message body; empty for photo-only messages.
	Text string `json:"text,omitempty"`

	// PhotoFileID references a receipt photo to download before inference.
	PhotoFileID string `json:"photo_file_id,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *InterpretMessageJob) GetID() string { return j.JobID }

func (j *InterpretMessageJob) GetType() JobType { return JobTypeInterpretMessage }

func (j *InterpretMessageJob) GetStatus() JobStatus { return j.Status }

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	PublishInterpretMessage(ctx context.Context, job *InterpretMessageJob) error
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue, calling handler for
	// each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error marks the job failed; it
// is re-enqueued only when the job's MaxRetries allows.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state so the API can report progress.
type JobStore interface {
	SaveJob(ctx context.Context, job *InterpretMessageJob) error
	GetJob(ctx context.Context, jobID string) (*InterpretMessageJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*InterpretMessageJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// ChatID filters jobs by originating conversation.
	ChatID int64

	// Status filters jobs by status.
	Status JobStatus

	Limit  int
	Offset int
}
