package primary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
	"wardrobe/internal/models"
	"wardrobe/internal/store"
)

// --- Job Store Implementation ---

// CreateJob inserts a new job and fills in its ID and timestamps.
func (s *StoreImpl) CreateJob(ctx context.Context, job *models.ProcessingJob) error {
	query := `
		INSERT INTO processing_jobs (user_id, status, current_step, progress_percentage, image_type, original_filename, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id, created_at, updated_at`

	now := time.Now().UTC()
	err := s.db.QueryRow(ctx, query,
		job.UserID,
		string(job.Status),
		job.CurrentStep,
		job.ProgressPercentage,
		string(job.ImageType),
		job.OriginalFilename,
		now,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create processing job for user %d: %w", job.UserID, err)
	}
	log.WithFields(log.Fields{"job_id": job.ID, "user_id": job.UserID}).Debug("processing job created")
	return nil
}

// GetJob retrieves a job by id.
func (s *StoreImpl) GetJob(ctx context.Context, id int64) (*models.ProcessingJob, error) {
	query := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE id = $1`
	job, err := scanJob(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %d: %w", id, err)
	}
	return job, nil
}

// ListJobs returns jobs newest first.
func (s *StoreImpl) ListJobs(ctx context.Context, filter store.JobFilter, limit, offset int) ([]*models.ProcessingJob, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + jobColumns + ` FROM processing_jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ProcessingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return jobs, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return jobs, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

// MarkProcessing moves an UPLOADING job to PROCESSING.
func (s *StoreImpl) MarkProcessing(ctx context.Context, id int64, originalRef string) error {
	query := `
		UPDATE processing_jobs
		SET status = $2, current_step = $3, original_image_ref = COALESCE(original_image_ref, NULLIF($4, '')), updated_at = $5
		WHERE id = $1 AND status = $6`
	cmdTag, err := s.db.Exec(ctx, query, id, string(models.JobStatusProcessing), models.StepQueued,
		originalRef, time.Now().UTC(), string(models.JobStatusUploading))
	if err != nil {
		return fmt.Errorf("failed to mark job %d processing: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("job %d is not uploading: %w", id, store.ErrConflict)
	}
	return nil
}

// RecordProgress writes display fields while the job is in flight. Last write wins.
func (s *StoreImpl) RecordProgress(ctx context.Context, id int64, update models.ProgressUpdate) (bool, error) {
	query := `
		UPDATE processing_jobs
		SET current_step = $2, progress_percentage = $3, updated_at = $4
		WHERE id = $1 AND status = ANY($5)`
	cmdTag, err := s.db.Exec(ctx, query, id, update.Step, models.ClampPercentage(update.Percentage),
		time.Now().UTC(), models.ResultAcceptingStatuses())
	if err != nil {
		return false, fmt.Errorf("failed to record progress for job %d: %w", id, err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// ApplyResult writes a reconciled worker result under a row lock.
// Stage refs keep the first value ever written.
func (s *StoreImpl) ApplyResult(ctx context.Context, id int64, outcome models.ResultOutcome) (*models.ProcessingJob, error) {
	segmented, err := models.MarshalItemList(outcome.SegmentedItems)
	if err != nil {
		return nil, err
	}
	expanded, err := models.MarshalItemList(outcome.ExpandedItems)
	if err != nil {
		return nil, err
	}

	step, pct := models.StepCompleted, 100
	var errMsg *string
	if !outcome.Success {
		step, pct = models.StepFailed, 0
		errMsg = &outcome.ErrorMessage
	}

	var job *models.ProcessingJob
	err = s.withLockedJob(ctx, id, func(tx pgx.Tx, status models.JobStatus) error {
		if !status.AcceptsResult() {
			return store.ErrTerminalState
		}
		query := `
			UPDATE processing_jobs SET
				status = $2,
				current_step = $3,
				progress_percentage = $4,
				error_message = $5,
				background_removed_ref = COALESCE(background_removed_ref, $6),
				segmented_ref = COALESCE(segmented_ref, $7),
				inpainted_ref = COALESCE(inpainted_ref, $8),
				suggested_category = COALESCE($9, suggested_category),
				classification_label = COALESCE($10, classification_label),
				area_pixels = COALESCE($11, area_pixels),
				segmented_items = COALESCE($12::jsonb, segmented_items),
				expanded_items = COALESCE($13::jsonb, expanded_items),
				updated_at = $14
			WHERE id = $1
			RETURNING ` + jobColumns
		var scanErr error
		job, scanErr = scanJob(tx.QueryRow(ctx, query,
			id,
			string(outcome.Status()),
			step,
			pct,
			errMsg,
			outcome.BackgroundRemovedRef,
			outcome.SegmentedRef,
			outcome.InpaintedRef,
			outcome.SuggestedCategory,
			outcome.ClassificationLabel,
			outcome.AreaPixels,
			segmented,
			expanded,
			time.Now().UTC(),
		))
		return scanErr
	})
	if err != nil {
		return nil, wrapGuarded(err, "apply result", id)
	}
	return job, nil
}

// FailJob forces an in-flight job to FAILED. A job that already settled,
// including one waiting in READY_FOR_REVIEW, is left alone.
func (s *StoreImpl) FailJob(ctx context.Context, id int64, message string) (*models.ProcessingJob, error) {
	var job *models.ProcessingJob
	err := s.withLockedJob(ctx, id, func(tx pgx.Tx, status models.JobStatus) error {
		if !status.AcceptsResult() {
			return store.ErrTerminalState
		}
		query := `
			UPDATE processing_jobs
			SET status = $2, current_step = $3, progress_percentage = 0, error_message = $4, updated_at = $5
			WHERE id = $1
			RETURNING ` + jobColumns
		var scanErr error
		job, scanErr = scanJob(tx.QueryRow(ctx, query, id, string(models.JobStatusFailed), models.StepFailed, message, time.Now().UTC()))
		return scanErr
	})
	if err != nil {
		return nil, wrapGuarded(err, "fail job", id)
	}
	return job, nil
}

// ConfirmJob records the user's final image and completes the job.
func (s *StoreImpl) ConfirmJob(ctx context.Context, id int64, selectedRef string) (*models.ProcessingJob, error) {
	var job *models.ProcessingJob
	err := s.withLockedJob(ctx, id, func(tx pgx.Tx, status models.JobStatus) error {
		if !status.CanTransitionTo(models.JobStatusCompleted) {
			return store.ErrConflict
		}
		query := `
			UPDATE processing_jobs
			SET status = $2, current_step = $3, confirmed = TRUE, selected_image_ref = $4, updated_at = $5
			WHERE id = $1
			RETURNING ` + jobColumns
		var scanErr error
		job, scanErr = scanJob(tx.QueryRow(ctx, query, id, string(models.JobStatusCompleted), models.StepConfirmed, selectedRef, time.Now().UTC()))
		return scanErr
	})
	if err != nil {
		return nil, wrapGuarded(err, "confirm job", id)
	}
	return job, nil
}

// withLockedJob runs fn in a transaction holding the job's row lock.
// fn's error rolls the transaction back.
func (s *StoreImpl) withLockedJob(ctx context.Context, id int64, fn func(tx pgx.Tx, status models.JobStatus) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var status string
	if err := tx.QueryRow(ctx, `SELECT status FROM processing_jobs WHERE id = $1 FOR UPDATE`, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("lock job row: %w", err)
	}
	if err := fn(tx, models.JobStatus(status)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func wrapGuarded(err error, op string, id int64) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrTerminalState) || errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	return fmt.Errorf("failed to %s %d: %w", op, id, err)
}

// Ensure StoreImpl satisfies the JobStore interface
var _ store.JobStore = (*StoreImpl)(nil)
