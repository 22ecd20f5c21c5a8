package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"wardrobe/internal/models"
)

// StoreImpl implements the store.JobStore interface using PostgreSQL.
type StoreImpl struct {
	db *pgxpool.Pool
}

// NewPrimaryStore creates a new PostgreSQL primary store implementation.
func NewPrimaryStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database DSN: %w", err)
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &StoreImpl{db: dbpool}, nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection pool.
func (s *StoreImpl) Close() {
	s.db.Close()
}

// --- Helper Functions ---

// jobColumns is the column order scanJob expects.
const jobColumns = `id, user_id, status, current_step, progress_percentage, error_message, confirmed,
	image_type, original_filename, original_image_ref, background_removed_ref, segmented_ref,
	inpainted_ref, selected_image_ref, suggested_category, classification_label, area_pixels,
	segmented_items, expanded_items, created_at, updated_at`

// scanJob scans a single row into a models.ProcessingJob.
// It expects the columns in the order defined by jobColumns.
func scanJob(row pgx.Row) (*models.ProcessingJob, error) {
	var (
		job                 models.ProcessingJob
		status, imageType   string
		segmented, expanded []byte
	)
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&status,
		&job.CurrentStep,
		&job.ProgressPercentage,
		&job.ErrorMessage,
		&job.Confirmed,
		&imageType,
		&job.OriginalFilename,
		&job.OriginalImageRef,
		&job.BackgroundRemovedRef,
		&job.SegmentedRef,
		&job.InpaintedRef,
		&job.SelectedImageRef,
		&job.SuggestedCategory,
		&job.ClassificationLabel,
		&job.AreaPixels,
		&segmented,
		&expanded,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	job.ImageType = models.ImageType(imageType)
	if job.SegmentedItems, err = models.UnmarshalItemList(segmented); err != nil {
		return nil, fmt.Errorf("job %d segmented_items: %w", job.ID, err)
	}
	if job.ExpandedItems, err = models.UnmarshalItemList(expanded); err != nil {
		return nil, fmt.Errorf("job %d expanded_items: %w", job.ID, err)
	}
	return &job, nil
}
