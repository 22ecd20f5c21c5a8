package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wardrobe/internal/models"
	"wardrobe/internal/store"
	"wardrobe/internal/store/storetest"
)

func TestJobStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.JobStore { return NewJobStore() })
}

func TestJobStore_ReturnsCopies(t *testing.T) {
	s := NewJobStore()
	msg := "kept"
	s.Put(&models.ProcessingJob{ID: 1, UserID: 1, Status: models.JobStatusFailed, ErrorMessage: &msg})

	got, err := s.GetJob(context.Background(), 1)
	require.NoError(t, err)
	*got.ErrorMessage = "mutated"
	got.Status = models.JobStatusCompleted

	again, err := s.GetJob(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "kept", *again.ErrorMessage)
	assert.Equal(t, models.JobStatusFailed, again.Status)
}
