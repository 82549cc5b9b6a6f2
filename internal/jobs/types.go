package jobs

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
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
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// RefreshSalesJob asks the worker to fetch a date range from the Fudo API,
// archive the raw payload and load the normalized sales into the warehouse.
type RefreshSalesJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// StartDate and EndDate bound the createdAt filter, inclusive.
	StartDate civil.Date `json:"start_date"`
	EndDate   civil.Date `json:"end_date"`

	// IncludeCategories also fetches the item/product/category side-table.
	IncludeCategories bool `json:"include_categories"`

	// ArchiveURI is the gs:// URI of the archived raw payload, set once the
	// fetch succeeded.
	ArchiveURI string `json:"archive_uri,omitempty"`

	// SalesLoaded is how many sales the job pushed to the warehouse.
	SalesLoaded int `json:"sales_loaded"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount and MaxRetries drive the queue's retry policy.
	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher defines the interface for publishing jobs to a queue. The
// abstraction keeps the handlers independent from the queue implementation.
type Publisher interface {
	// PublishRefresh publishes a sales refresh job.
	PublishRefresh(ctx context.Context, job *RefreshSalesJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs; the handler is called per job.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error marks the job failed and
// eligible for retry.
type JobHandler func(ctx context.Context, job *RefreshSalesJob) error

// JobStore stores and retrieves job state snapshots for the status endpoint.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *RefreshSalesJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*RefreshSalesJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*RefreshSalesJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Status filters jobs by status.
	Status JobStatus

	// Limit caps the number of results; Offset skips past results.
	Limit  int
	Offset int
}
