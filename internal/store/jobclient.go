package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"wardrobe/internal/models"
	"wardrobe/internal/tasks"
)

// Enqueuer is the part of *asynq.Client the job client needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// JobClientOptions tunes how processing requests are published.
type JobClientOptions struct {
	// MaxRetry is how often the worker side may retry a request task.
	MaxRetry int
	// RequestMaxAge rejects requests older than this before publishing. Zero disables.
	RequestMaxAge time.Duration
}

// AsynqJobClient is a concrete JobClient
// Publishes processing requests onto the processing.request queue.
// Ensure it implements JobClient
var _ JobClient = (*AsynqJobClient)(nil)

type AsynqJobClient struct {
	client Enqueuer
	opts   JobClientOptions
	nowFn  func() time.Time
}

// NewAsynqJobClient connects an asynq client to Redis.
func NewAsynqJobClient(redisOpt asynq.RedisClientOpt, opts JobClientOptions) (*AsynqJobClient, error) {
	if redisOpt.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty for AsynqJobClient")
	}
	return NewJobClientWithEnqueuer(asynq.NewClient(redisOpt), opts), nil
}

// NewJobClientWithEnqueuer wraps an existing enqueuer (an *asynq.Client or a test double).
func NewJobClientWithEnqueuer(enq Enqueuer, opts JobClientOptions) *AsynqJobClient {
	return &AsynqJobClient{client: enq, opts: opts, nowFn: time.Now}
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// SubmitProcessingRequest serializes the request for job and publishes it.
// The job must already be committed in PROCESSING. Each call is one publish
// attempt; a broker-side task id conflict means this attempt was already
// enqueued and is reported as success.
func (jc *AsynqJobClient) SubmitProcessingRequest(ctx context.Context, job *models.ProcessingJob, image []byte) error {
	if jc.client == nil {
		return fmt.Errorf("AsynqJobClient internal client is not initialized")
	}
	if job == nil {
		return fmt.Errorf("submit processing request: nil job")
	}
	if job.Status != models.JobStatusProcessing {
		return fmt.Errorf("submit processing request for job %d in status %s: %w", job.ID, job.Status, models.ErrInvalidTransition)
	}

	payload := tasks.ProcessingRequestPayload{
		JobID:            job.ID,
		UserID:           job.UserID,
		Image:            image,
		OriginalFilename: job.OriginalFilename,
		ImageType:        string(job.ImageType),
		RetryCount:       0,
		CreatedAt:        requestCreated(job, jc.nowFn()).UnixMilli(),
	}
	if payload.Stale(jc.nowFn(), jc.opts.RequestMaxAge) {
		return fmt.Errorf("submit processing request for job %d: %w", job.ID, models.ErrStaleRequest)
	}

	opts := []asynq.Option{
		asynq.Queue(tasks.QueueProcessingRequest),
		asynq.TaskID(tasks.RequestTaskID(job.ID, payload.RetryCount)),
	}
	if jc.opts.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(jc.opts.MaxRetry))
	}
	task, err := tasks.NewProcessingRequestTask(payload)
	if err != nil {
		return fmt.Errorf("submit processing request for job %d: %w", job.ID, err)
	}

	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			log.WithField("job_id", job.ID).Debug("processing request already enqueued, skipping")
			return nil
		}
		log.WithFields(log.Fields{"job_id": job.ID, "error": err}).Error("failed to enqueue processing request")
		return fmt.Errorf("%w: job %d: %v", models.ErrPublishFailed, job.ID, err)
	}

	log.WithFields(log.Fields{
		"job_id":  job.ID,
		"task_id": info.ID,
		"queue":   info.Queue,
		"bytes":   len(image),
	}).Info("processing request enqueued")
	return nil
}

// requestCreated is the job's creation time, which the staleness check
// measures against. Jobs not yet read back from a store fall back to now.
func requestCreated(job *models.ProcessingJob, now time.Time) time.Time {
	if job.CreatedAt.IsZero() {
		return now
	}
	return job.CreatedAt
}
