package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResult_KeepsAbsentAndEmptyListsApart(t *testing.T) {
	p, err := DecodeResult([]byte(`{"job_id":42,"success":true,"segmented_items":[],"suggested_category":" shirt "}`))
	require.NoError(t, err)
	require.NotNil(t, p.SegmentedItems)
	assert.Empty(t, *p.SegmentedItems)
	assert.Nil(t, p.ExpandedItems)
	assert.Equal(t, "shirt", p.SuggestedCategory)

	_, err = DecodeResult([]byte(`{"success":true}`))
	assert.Error(t, err)
	_, err = DecodeResult([]byte(`[`))
	assert.Error(t, err)
}

func TestDecodeProgress(t *testing.T) {
	p, err := DecodeProgress([]byte(`{"job_id":1,"user_id":2,"status":"PROCESSING","step":"segmenting","percentage":40}`))
	require.NoError(t, err)
	assert.Equal(t, ProgressPayload{JobID: 1, UserID: 2, Status: "PROCESSING", Step: "segmenting", Percentage: 40}, p)

	_, err = DecodeProgress([]byte(`{"job_id":0}`))
	assert.Error(t, err)
}

func TestProcessingRequestTask(t *testing.T) {
	task, err := NewProcessingRequestTask(ProcessingRequestPayload{JobID: 3, Image: []byte{1, 2}, CreatedAt: 1000})
	require.NoError(t, err)
	assert.Equal(t, TypeProcessingRequest, task.Type())

	p, err := DecodeProcessingRequest(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, p.Image)
	assert.Equal(t, "job-3-attempt-0", RequestTaskID(3, 0))
}

func TestStale(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := ProcessingRequestPayload{CreatedAt: created.UnixMilli()}

	assert.False(t, p.Stale(created.Add(time.Hour), 0), "zero max age disables the check")
	assert.False(t, p.Stale(created.Add(time.Minute), time.Hour))
	assert.True(t, p.Stale(created.Add(2*time.Hour), time.Hour))
}
