package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"wardrobe/internal/models"
	"wardrobe/internal/objectstore"
	"wardrobe/internal/services"
	"wardrobe/internal/store/memory"
)

type mockJobClient struct {
	mock.Mock
}

func (m *mockJobClient) SubmitProcessingRequest(ctx context.Context, job *models.ProcessingJob, image []byte) error {
	args := m.Called(ctx, job, image)
	return args.Error(0)
}

func (m *mockJobClient) Close() error { return nil }

type serviceFixture struct {
	jobs   *memory.JobStore
	outFs  afero.Fs
	client *mockJobClient
	svc    *services.ImageJobService
}

func newServiceFixture(maxBytes int64) *serviceFixture {
	f := &serviceFixture{
		jobs:   memory.NewJobStore(),
		outFs:  afero.NewMemMapFs(),
		client: new(mockJobClient),
	}
	f.svc = services.NewImageJobService(services.ImageJobServiceDeps{
		Jobs:           f.jobs,
		Blobs:          objectstore.New(f.outFs, afero.NewMemMapFs(), "http://cdn.test"),
		JobClient:      f.client,
		MaxUploadBytes: maxBytes,
	})
	return f
}

func TestUpload_SubmitsProcessingJob(t *testing.T) {
	f := newServiceFixture(0)
	f.client.On("SubmitProcessingRequest", mock.Anything, mock.MatchedBy(func(j *models.ProcessingJob) bool {
		return j.Status == models.JobStatusProcessing && j.OriginalImageRef != nil
	}), []byte("jpeg")).Return(nil).Once()

	job, err := f.svc.Upload(context.Background(), services.UploadParams{UserID: 7, Filename: "Look.JPG", ImageType: "full_body", Data: []byte("jpeg")})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.Equal(t, models.StepQueued, job.CurrentStep)
	assert.Equal(t, models.ImageTypeFullBody, job.ImageType)
	require.NotNil(t, job.OriginalImageRef)
	assert.Equal(t, "http://cdn.test/original/1.jpg", *job.OriginalImageRef)

	stored, err := afero.ReadFile(f.outFs, "original/1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(stored))
	f.client.AssertExpectations(t)
}

func TestUpload_DefaultsToSingleItem(t *testing.T) {
	f := newServiceFixture(0)
	f.client.On("SubmitProcessingRequest", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	job, err := f.svc.Upload(context.Background(), services.UploadParams{UserID: 7, Filename: "a.png", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, models.ImageTypeSingleItem, job.ImageType)
}

func TestUpload_Validation(t *testing.T) {
	cases := []struct {
		name   string
		params services.UploadParams
	}{
		{"empty image", services.UploadParams{UserID: 7, Filename: "a.png"}},
		{"too large", services.UploadParams{UserID: 7, Filename: "a.png", Data: []byte("0123456789")}},
		{"unknown type", services.UploadParams{UserID: 7, Filename: "a.png", ImageType: "PANORAMA", Data: []byte("x")}},
		{"no user", services.UploadParams{Filename: "a.png", Data: []byte("x")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newServiceFixture(4)
			_, err := f.svc.Upload(context.Background(), tc.params)
			assert.ErrorIs(t, err, models.ErrValidation)
			f.client.AssertNotCalled(t, "SubmitProcessingRequest", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUpload_PublishFailureFailsJob(t *testing.T) {
	f := newServiceFixture(0)
	f.client.On("SubmitProcessingRequest", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.Join(models.ErrPublishFailed, errors.New("redis: connection refused")))

	_, err := f.svc.Upload(context.Background(), services.UploadParams{UserID: 7, Filename: "a.png", Data: []byte("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPublishFailed)

	job, err := f.jobs.GetJob(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "enqueue")

	exists, err := afero.Exists(f.outFs, "original/1.png")
	require.NoError(t, err)
	assert.False(t, exists, "original is removed when the job cannot be handed off")
}

func seedReviewable(f *serviceFixture) {
	bg := "http://cdn.test/background-removed/5.png"
	f.jobs.Put(&models.ProcessingJob{
		ID:                   5,
		UserID:               7,
		Status:               models.JobStatusReadyForReview,
		CurrentStep:          models.StepCompleted,
		ProgressPercentage:   100,
		BackgroundRemovedRef: &bg,
		SegmentedItems: models.NewItemList([]models.Item{
			{Label: "shirt", Ref: "http://cdn.test/segmented-items/5/0.png", AreaPixels: 10},
		}),
	})
}

func TestGet_RestrictedToOwner(t *testing.T) {
	f := newServiceFixture(0)
	seedReviewable(f)

	job, err := f.svc.Get(context.Background(), 7, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), job.ID)

	_, err = f.svc.Get(context.Background(), 8, 5)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.svc.Get(context.Background(), 7, 99)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestList_FiltersByOwnerAndStatus(t *testing.T) {
	f := newServiceFixture(0)
	seedReviewable(f)
	f.jobs.Put(&models.ProcessingJob{ID: 6, UserID: 7, Status: models.JobStatusFailed})
	f.jobs.Put(&models.ProcessingJob{ID: 7, UserID: 9, Status: models.JobStatusFailed})

	all, err := f.svc.List(context.Background(), services.ListJobsParams{UserID: 7})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := f.svc.List(context.Background(), services.ListJobsParams{UserID: 7, Status: "failed"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, int64(6), failed[0].ID)

	_, err = f.svc.List(context.Background(), services.ListJobsParams{UserID: 7, Status: "bogus"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestConfirm(t *testing.T) {
	t.Run("selects produced image", func(t *testing.T) {
		f := newServiceFixture(0)
		seedReviewable(f)

		job, err := f.svc.Confirm(context.Background(), 7, 5, "http://cdn.test/segmented-items/5/0.png")
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, job.Status)
		assert.True(t, job.Confirmed)
		require.NotNil(t, job.SelectedImageRef)
		assert.Equal(t, "http://cdn.test/segmented-items/5/0.png", *job.SelectedImageRef)

		_, err = f.svc.Confirm(context.Background(), 7, 5, "http://cdn.test/background-removed/5.png")
		assert.ErrorIs(t, err, models.ErrConflict, "completed jobs cannot be confirmed again")
	})

	t.Run("rejects foreign ref", func(t *testing.T) {
		f := newServiceFixture(0)
		seedReviewable(f)
		_, err := f.svc.Confirm(context.Background(), 7, 5, "http://elsewhere/x.png")
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("rejects other user", func(t *testing.T) {
		f := newServiceFixture(0)
		seedReviewable(f)
		_, err := f.svc.Confirm(context.Background(), 8, 5, "http://cdn.test/background-removed/5.png")
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("rejects job still processing", func(t *testing.T) {
		f := newServiceFixture(0)
		f.jobs.Put(&models.ProcessingJob{ID: 5, UserID: 7, Status: models.JobStatusProcessing})
		_, err := f.svc.Confirm(context.Background(), 7, 5, "anything")
		assert.ErrorIs(t, err, models.ErrConflict)
	})
}
