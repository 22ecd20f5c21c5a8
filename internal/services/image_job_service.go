package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"wardrobe/internal/models"
	"wardrobe/internal/objectstore"
	"wardrobe/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	stageOriginal    = "original"
)

// ImageJobServiceDeps wires the intake service.
type ImageJobServiceDeps struct {
	Jobs           store.JobStore
	Blobs          store.BlobStore
	JobClient      store.JobClient
	MaxUploadBytes int64 // 0 means unlimited
}

// ImageJobService creates processing jobs and serves them back to their owners.
type ImageJobService struct {
	jobs      store.JobStore
	blobs     store.BlobStore
	jobClient store.JobClient
	maxBytes  int64
}

func NewImageJobService(deps ImageJobServiceDeps) *ImageJobService {
	return &ImageJobService{
		jobs:      deps.Jobs,
		blobs:     deps.Blobs,
		jobClient: deps.JobClient,
		maxBytes:  deps.MaxUploadBytes,
	}
}

type UploadParams struct {
	UserID    int64
	Filename  string
	ImageType string
	Data      []byte
}

// Upload persists a new job with its original image and hands it to the
// image worker. The returned job is in PROCESSING. A publish failure leaves
// the job FAILED and is returned wrapped in models.ErrPublishFailed.
func (s *ImageJobService) Upload(ctx context.Context, params UploadParams) (*models.ProcessingJob, error) {
	imageType, err := s.validateUpload(params)
	if err != nil {
		return nil, err
	}

	job := &models.ProcessingJob{
		UserID:           params.UserID,
		Status:           models.JobStatusUploading,
		CurrentStep:      models.StepUploading,
		ImageType:        imageType,
		OriginalFilename: params.Filename,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	logger := log.WithFields(log.Fields{"job_id": job.ID, "user_id": job.UserID, "image_type": job.ImageType})

	ref, err := s.blobs.Store(ctx, params.Data, objectstore.Key(stageOriginal, job.ID, objectstore.ExtOf(params.Filename)))
	if err != nil {
		s.abandon(ctx, job.ID, "", fmt.Sprintf("failed to store original image: %v", err), logger)
		return nil, fmt.Errorf("failed to store original image for job %d: %w", job.ID, err)
	}

	if err := s.jobs.MarkProcessing(ctx, job.ID, ref); err != nil {
		s.abandon(ctx, job.ID, ref, fmt.Sprintf("failed to start processing: %v", err), logger)
		return nil, fmt.Errorf("failed to mark job %d processing: %w", job.ID, mapStoreErr(err))
	}
	job.Status = models.JobStatusProcessing
	job.CurrentStep = models.StepQueued
	job.OriginalImageRef = &ref

	if err := s.jobClient.SubmitProcessingRequest(ctx, job, params.Data); err != nil {
		s.abandon(ctx, job.ID, ref, fmt.Sprintf("failed to enqueue processing request: %v", err), logger)
		return nil, fmt.Errorf("failed to submit job %d: %w", job.ID, err)
	}

	logger.WithField("bytes", len(params.Data)).Info("processing job submitted")
	return s.jobs.GetJob(ctx, job.ID)
}

func (s *ImageJobService) validateUpload(params UploadParams) (models.ImageType, error) {
	if params.UserID <= 0 {
		return "", fmt.Errorf("%w: missing user", models.ErrValidation)
	}
	if len(params.Data) == 0 {
		return "", fmt.Errorf("%w: image is empty", models.ErrValidation)
	}
	if s.maxBytes > 0 && int64(len(params.Data)) > s.maxBytes {
		return "", fmt.Errorf("%w: image is %d bytes, limit is %d", models.ErrValidation, len(params.Data), s.maxBytes)
	}
	imageType, ok := models.ParseImageType(params.ImageType)
	if !ok {
		return "", fmt.Errorf("%w: unknown image type %q", models.ErrValidation, params.ImageType)
	}
	return imageType, nil
}

// abandon forces a job that could not be handed off to FAILED and removes
// the stored original. Both steps are best-effort.
func (s *ImageJobService) abandon(ctx context.Context, jobID int64, ref, reason string, logger *log.Entry) {
	logger.Error(reason)
	if _, err := s.jobs.FailJob(ctx, jobID, reason); err != nil {
		logger.WithError(err).Error("failed to mark abandoned job as FAILED")
	}
	if ref == "" {
		return
	}
	if err := s.blobs.Delete(ctx, ref); err != nil {
		logger.WithError(err).Warn("failed to delete original image of abandoned job")
	}
}

// Get returns a job owned by userID.
func (s *ImageJobService) Get(ctx context.Context, userID, jobID int64) (*models.ProcessingJob, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job %d: %w", jobID, mapStoreErr(err))
	}
	if job.UserID != userID {
		return nil, fmt.Errorf("job %d: %w", jobID, models.ErrForbidden)
	}
	return job, nil
}

type ListJobsParams struct {
	UserID int64
	Status string
	Limit  int
	Offset int
}

// List returns the caller's jobs, newest first.
func (s *ImageJobService) List(ctx context.Context, params ListJobsParams) ([]*models.ProcessingJob, error) {
	filter := store.JobFilter{UserID: params.UserID}
	if params.Status != "" {
		status := models.JobStatus(strings.ToUpper(params.Status))
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, params.Status)
		}
		filter.Status = status
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	jobs, err := s.jobs.ListJobs(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Confirm records the owner's final image choice and completes the job.
func (s *ImageJobService) Confirm(ctx context.Context, userID, jobID int64, imageRef string) (*models.ProcessingJob, error) {
	imageRef = strings.TrimSpace(imageRef)
	if imageRef == "" {
		return nil, fmt.Errorf("%w: image_ref is required", models.ErrValidation)
	}
	job, err := s.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusReadyForReview {
		return nil, fmt.Errorf("job %d is %s: %w", jobID, job.Status, models.ErrConflict)
	}
	if !job.HasRef(imageRef) {
		return nil, fmt.Errorf("%w: %q is not an image of job %d", models.ErrValidation, imageRef, jobID)
	}
	confirmed, err := s.jobs.ConfirmJob(ctx, jobID, imageRef)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm job %d: %w", jobID, mapStoreErr(err))
	}
	log.WithFields(log.Fields{"job_id": jobID, "user_id": userID, "selected": imageRef}).Info("job confirmed")
	return confirmed, nil
}

// mapStoreErr lifts store sentinels into the domain errors the API layer maps.
func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", models.ErrNotFound, err)
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrTerminalState):
		return fmt.Errorf("%w: %v", models.ErrConflict, err)
	default:
		return err
	}
}
