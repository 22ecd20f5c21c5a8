package store

import (
	"context"

	"wardrobe/internal/models"
)

// --- Job Client ---

// JobClient publishes processing requests for jobs that are already committed.
type JobClient interface {
	SubmitProcessingRequest(ctx context.Context, job *models.ProcessingJob, image []byte) error
	Close() error
}

// --- Job Store ---

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	UserID int64
	Status models.JobStatus
}

// JobStore persists processing jobs. Every status-changing method is guarded
// on the current status inside a single transaction and returns
// ErrTerminalState (or ErrConflict for confirmation) when the guard rejects.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.ProcessingJob) error
	GetJob(ctx context.Context, id int64) (*models.ProcessingJob, error)
	ListJobs(ctx context.Context, filter JobFilter, limit, offset int) ([]*models.ProcessingJob, error)

	// MarkProcessing moves UPLOADING -> PROCESSING and records the stored original.
	MarkProcessing(ctx context.Context, id int64, originalRef string) error
	// RecordProgress writes step/percentage while the job is still in flight.
	// It reports false when the guard dropped the update.
	RecordProgress(ctx context.Context, id int64, update models.ProgressUpdate) (bool, error)
	// ApplyResult writes a reconciled worker result and returns the updated job.
	ApplyResult(ctx context.Context, id int64, outcome models.ResultOutcome) (*models.ProcessingJob, error)
	// FailJob forces an UPLOADING or PROCESSING job to FAILED. Any other
	// status yields ErrTerminalState.
	FailJob(ctx context.Context, id int64, message string) (*models.ProcessingJob, error)
	// ConfirmJob moves READY_FOR_REVIEW -> COMPLETED with the selected image.
	ConfirmJob(ctx context.Context, id int64, selectedRef string) (*models.ProcessingJob, error)

	Ping(ctx context.Context) error
}

// --- Blob Store ---

// BlobStore is the object storage boundary: our own outputs plus read access
// to files the worker left in the shared namespace.
type BlobStore interface {
	Store(ctx context.Context, data []byte, key string) (string, error)
	Delete(ctx context.Context, ref string) error
	Read(ctx context.Context, path string) ([]byte, error)
}
