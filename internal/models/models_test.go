package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	allowed := map[JobStatus][]JobStatus{
		JobStatusUploading:      {JobStatusProcessing, JobStatusFailed},
		JobStatusProcessing:     {JobStatusReadyForReview, JobStatusFailed},
		JobStatusReadyForReview: {JobStatusCompleted, JobStatusFailed},
	}
	all := []JobStatus{JobStatusUploading, JobStatusProcessing, JobStatusReadyForReview, JobStatusCompleted, JobStatusFailed}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.False(t, JobStatusReadyForReview.IsTerminal())
	assert.False(t, JobStatusReadyForReview.AcceptsResult())
	assert.True(t, JobStatusUploading.AcceptsResult())
	assert.False(t, JobStatus("LOST").Valid())
}

func TestParseImageType(t *testing.T) {
	for raw, want := range map[string]ImageType{"": ImageTypeSingleItem, "full_body": ImageTypeFullBody, " SINGLE_ITEM ": ImageTypeSingleItem} {
		got, ok := ParseImageType(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseImageType("panorama")
	assert.False(t, ok)
}

func TestNewItemList_SortsByAreaDescending(t *testing.T) {
	in := []Item{{Label: "a", AreaPixels: 1}, {Label: "b", AreaPixels: 30}, {Label: "c", AreaPixels: 30}, {Label: "d", AreaPixels: 5}}
	l := NewItemList(in)
	labels := make([]string, 0, l.Len())
	for _, it := range l.Items {
		labels = append(labels, it.Label)
	}
	assert.Equal(t, []string{"b", "c", "d", "a"}, labels, "ties keep input order")
	assert.Equal(t, "a", in[0].Label, "input is not reordered")
	assert.Equal(t, ItemListVersion, l.Version)
}

func TestItemListEncoding_UnsetVersusEmpty(t *testing.T) {
	raw, err := MarshalItemList(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)
	l, err := UnmarshalItemList(raw)
	require.NoError(t, err)
	assert.Nil(t, l)

	raw, err = MarshalItemList(&ItemList{Version: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"items":[]}`, string(raw))
	l, err = UnmarshalItemList(raw)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, 0, l.Len())

	_, err = UnmarshalItemList([]byte(`{"items":`))
	assert.Error(t, err)
}

func TestRefs(t *testing.T) {
	orig, bg := "o", "bg"
	job := &ProcessingJob{
		OriginalImageRef:     &orig,
		BackgroundRemovedRef: &bg,
		ExpandedItems:        NewItemList([]Item{{Ref: "e1"}}),
	}
	assert.Equal(t, []string{"o", "bg", "e1"}, job.Refs())
	assert.True(t, job.HasRef("e1"))
	assert.False(t, job.HasRef("x"))
}

func TestClampPercentage(t *testing.T) {
	assert.Equal(t, 0, ClampPercentage(-5))
	assert.Equal(t, 55, ClampPercentage(55))
	assert.Equal(t, 100, ClampPercentage(101))
}
