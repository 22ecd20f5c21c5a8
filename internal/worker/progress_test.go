package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wardrobe/internal/models"
	"wardrobe/internal/store/memory"
	"wardrobe/internal/tasks"
	"wardrobe/internal/worker"
)

func newProgressHandler(t *testing.T, status models.JobStatus) (*memory.JobStore, *recordingNotifier, asynq.Handler) {
	t.Helper()
	jobs := memory.NewJobStore()
	jobs.Put(&models.ProcessingJob{ID: 42, UserID: 7, Status: status, CurrentStep: models.StepQueued})
	n := &recordingNotifier{}
	h := worker.HandleProgress(worker.ProgressDeps{Jobs: jobs, Notifier: n, Now: func() time.Time { return fixedNow }})
	return jobs, n, h
}

func sendProgress(t *testing.T, h asynq.Handler, p tasks.ProgressPayload) error {
	t.Helper()
	task, err := tasks.NewProgressTask(p)
	require.NoError(t, err)
	return h.ProcessTask(context.Background(), task)
}

func TestHandleProgress_RecordsAndRelays(t *testing.T) {
	jobs, n, h := newProgressHandler(t, models.JobStatusProcessing)

	require.NoError(t, sendProgress(t, h, tasks.ProgressPayload{JobID: 42, UserID: 7, Status: "PROCESSING", Step: "segmenting", Percentage: 40}))

	job, err := jobs.GetJob(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "segmenting", job.CurrentStep)
	assert.Equal(t, 40, job.ProgressPercentage)
	assert.Equal(t, models.JobStatusProcessing, job.Status)

	sent := n.all()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(7), sent[0].userID)
	assert.Equal(t, "progress", sent[0].n.Type)
	assert.Equal(t, "segmenting", sent[0].n.Step)
	assert.Equal(t, 40, sent[0].n.Percentage)
	assert.Equal(t, fixedNow.UnixMilli(), sent[0].n.Timestamp)
}

func TestHandleProgress_ClampsPercentage(t *testing.T) {
	_, n, h := newProgressHandler(t, models.JobStatusProcessing)

	require.NoError(t, sendProgress(t, h, tasks.ProgressPayload{JobID: 42, UserID: 7, Step: "x", Percentage: 150}))

	sent := n.all()
	require.Len(t, sent, 1)
	assert.Equal(t, 100, sent[0].n.Percentage)
	assert.Equal(t, "PROCESSING", sent[0].n.Status)
}

func TestHandleProgress_LateUpdateLeavesJobAlone(t *testing.T) {
	for _, status := range []models.JobStatus{models.JobStatusReadyForReview, models.JobStatusFailed, models.JobStatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			jobs, n, h := newProgressHandler(t, status)

			require.NoError(t, sendProgress(t, h, tasks.ProgressPayload{JobID: 42, UserID: 7, Status: "PROCESSING", Step: "inpainting", Percentage: 80}))

			job, err := jobs.GetJob(context.Background(), 42)
			require.NoError(t, err)
			assert.Equal(t, status, job.Status)
			assert.Equal(t, models.StepQueued, job.CurrentStep)
			assert.Equal(t, 0, job.ProgressPercentage)
			assert.Len(t, n.all(), 1, "the push relay is display-only and still goes out")
		})
	}
}

func TestHandleProgress_NeverFails(t *testing.T) {
	_, n, h := newProgressHandler(t, models.JobStatusProcessing)

	assert.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeProcessingProgress, []byte("nope"))))
	assert.NoError(t, sendProgress(t, h, tasks.ProgressPayload{JobID: 42, Step: "no owner"}))
	assert.Empty(t, n.all())

	n.err = errors.New("boom")
	assert.NoError(t, sendProgress(t, h, tasks.ProgressPayload{JobID: 42, UserID: 7, Step: "x"}))
}

func TestRegisterHandlers(t *testing.T) {
	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, worker.ProgressDeps{}, worker.ResultDeps{})

	for _, typename := range []string{tasks.TypeProcessingProgress, tasks.TypeProcessingResult} {
		_, pattern := mux.Handler(asynq.NewTask(typename, nil))
		assert.Equal(t, typename, pattern)
	}
	assert.Contains(t, worker.Queues(), tasks.QueueProcessingResult)
	assert.NotContains(t, worker.Queues(), tasks.QueueProcessingRequest)
}
