// Package storetest holds the behavior every store.JobStore must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wardrobe/internal/models"
	"wardrobe/internal/store"
)

// Run exercises the guarded lifecycle against a fresh store from newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.JobStore) {
	t.Run("lifecycle", func(t *testing.T) { testLifecycle(t, newStore(t)) })
	t.Run("guards", func(t *testing.T) { testGuards(t, newStore(t)) })
	t.Run("first ref wins", func(t *testing.T) { testFirstRefWins(t, newStore(t)) })
	t.Run("failure", func(t *testing.T) { testFailure(t, newStore(t)) })
	t.Run("failure keeps review", func(t *testing.T) { testFailureKeepsReview(t, newStore(t)) })
	t.Run("list", func(t *testing.T) { testList(t, newStore(t)) })
}

func createProcessing(t *testing.T, s store.JobStore, userID int64) *models.ProcessingJob {
	t.Helper()
	ctx := context.Background()
	job := &models.ProcessingJob{
		UserID:           userID,
		Status:           models.JobStatusUploading,
		CurrentStep:      models.StepUploading,
		ImageType:        models.ImageTypeSingleItem,
		OriginalFilename: "a.png",
	}
	require.NoError(t, s.CreateJob(ctx, job))
	require.NotZero(t, job.ID)
	require.NoError(t, s.MarkProcessing(ctx, job.ID, "ref://original"))
	return job
}

func ptr(s string) *string { return &s }

func testLifecycle(t *testing.T, s store.JobStore) {
	ctx := context.Background()
	job := createProcessing(t, s, 7)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Equal(t, models.StepQueued, got.CurrentStep)
	require.NotNil(t, got.OriginalImageRef)
	assert.Equal(t, "ref://original", *got.OriginalImageRef)
	assert.Nil(t, got.SegmentedItems)

	applied, err := s.RecordProgress(ctx, job.ID, models.ProgressUpdate{Step: "segmenting", Percentage: 140})
	require.NoError(t, err)
	assert.True(t, applied)

	area := int64(77)
	done, err := s.ApplyResult(ctx, job.ID, models.ResultOutcome{
		Success:        true,
		InpaintedRef:   ptr("ref://inpainted"),
		AreaPixels:     &area,
		SegmentedItems: models.NewItemList([]models.Item{{Label: "x", Ref: "ref://x", AreaPixels: 1}, {Label: "y", Ref: "ref://y", AreaPixels: 9}}),
		ExpandedItems:  models.NewItemList(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusReadyForReview, done.Status)
	assert.Equal(t, models.StepCompleted, done.CurrentStep)
	assert.Equal(t, 100, done.ProgressPercentage)
	assert.Nil(t, done.ErrorMessage)
	require.NotNil(t, done.SegmentedItems)
	assert.Equal(t, "y", done.SegmentedItems.Items[0].Label)
	require.NotNil(t, done.ExpandedItems)
	assert.Equal(t, 0, done.ExpandedItems.Len())

	applied, err = s.RecordProgress(ctx, job.ID, models.ProgressUpdate{Step: "late", Percentage: 10})
	require.NoError(t, err)
	assert.False(t, applied)

	confirmed, err := s.ConfirmJob(ctx, job.ID, "ref://y")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, confirmed.Status)
	assert.True(t, confirmed.Confirmed)
	require.NotNil(t, confirmed.SelectedImageRef)
	assert.Equal(t, "ref://y", *confirmed.SelectedImageRef)
	assert.Equal(t, 100, confirmed.ProgressPercentage)
}

func testGuards(t *testing.T, s store.JobStore) {
	ctx := context.Background()
	job := createProcessing(t, s, 7)

	assert.ErrorIs(t, s.MarkProcessing(ctx, job.ID, ""), store.ErrConflict)
	_, err := s.ConfirmJob(ctx, job.ID, "ref://original")
	assert.ErrorIs(t, err, store.ErrConflict, "only READY_FOR_REVIEW can be confirmed")

	_, err = s.ApplyResult(ctx, job.ID, models.ResultOutcome{Success: false, ErrorMessage: "boom"})
	require.NoError(t, err)

	_, err = s.ApplyResult(ctx, job.ID, models.ResultOutcome{Success: true})
	assert.ErrorIs(t, err, store.ErrTerminalState)
	_, err = s.FailJob(ctx, job.ID, "again")
	assert.ErrorIs(t, err, store.ErrTerminalState)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "boom", *got.ErrorMessage)

	_, err = s.GetJob(ctx, job.ID+1000)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.ApplyResult(ctx, job.ID+1000, models.ResultOutcome{Success: true})
	assert.ErrorIs(t, err, store.ErrNotFound)
	applied, err := s.RecordProgress(ctx, job.ID+1000, models.ProgressUpdate{Step: "x"})
	require.NoError(t, err)
	assert.False(t, applied)
}

func testFirstRefWins(t *testing.T, s store.JobStore) {
	ctx := context.Background()
	job := &models.ProcessingJob{UserID: 7, Status: models.JobStatusUploading, ImageType: models.ImageTypeFullBody}
	require.NoError(t, s.CreateJob(ctx, job))

	// UPLOADING accepts a result too.
	got, err := s.ApplyResult(ctx, job.ID, models.ResultOutcome{Success: true, SegmentedRef: ptr("ref://first")})
	require.NoError(t, err)
	require.NotNil(t, got.SegmentedRef)
	assert.Equal(t, "ref://first", *got.SegmentedRef)
	assert.Nil(t, got.BackgroundRemovedRef)
}

func testFailure(t *testing.T, s store.JobStore) {
	ctx := context.Background()
	job := createProcessing(t, s, 7)
	_, err := s.RecordProgress(ctx, job.ID, models.ProgressUpdate{Step: "inpainting", Percentage: 80})
	require.NoError(t, err)

	failed, err := s.FailJob(ctx, job.ID, "result reconciliation failed: disk full")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, failed.Status)
	assert.Equal(t, models.StepFailed, failed.CurrentStep)
	assert.Equal(t, 0, failed.ProgressPercentage)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "result reconciliation failed: disk full", *failed.ErrorMessage)
}

func testFailureKeepsReview(t *testing.T, s store.JobStore) {
	ctx := context.Background()
	job := createProcessing(t, s, 7)
	_, err := s.ApplyResult(ctx, job.ID, models.ResultOutcome{Success: true, SegmentedRef: ptr("ref://seg")})
	require.NoError(t, err)

	_, err = s.FailJob(ctx, job.ID, "result reconciliation failed: disk full")
	assert.ErrorIs(t, err, store.ErrTerminalState)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusReadyForReview, got.Status)
	assert.Nil(t, got.ErrorMessage)
}

func testList(t *testing.T, s store.JobStore) {
	ctx := context.Background()
	a := createProcessing(t, s, 70)
	b := createProcessing(t, s, 70)
	createProcessing(t, s, 71)
	_, err := s.FailJob(ctx, a.ID, "x")
	require.NoError(t, err)

	mine, err := s.ListJobs(ctx, store.JobFilter{UserID: 70}, 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, b.ID, mine[0].ID, "newest first")

	failed, err := s.ListJobs(ctx, store.JobFilter{UserID: 70, Status: models.JobStatusFailed}, 10, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, a.ID, failed[0].ID)

	page, err := s.ListJobs(ctx, store.JobFilter{UserID: 70}, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, a.ID, page[0].ID)
}
