package models

import "strings"

/*
Job status and image type constants for use throughout the codebase.
Centralizing these avoids magic strings in SQL, payloads and handlers.
*/

// JobStatus is the canonical status for rows in processing_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusUploading      JobStatus = "UPLOADING"
	JobStatusProcessing     JobStatus = "PROCESSING"
	JobStatusReadyForReview JobStatus = "READY_FOR_REVIEW"
	JobStatusCompleted      JobStatus = "COMPLETED"
	JobStatusFailed         JobStatus = "FAILED"
)

// transitions lists every allowed edge of the job state machine.
var transitions = map[JobStatus][]JobStatus{
	JobStatusUploading:      {JobStatusProcessing, JobStatusFailed},
	JobStatusProcessing:     {JobStatusReadyForReview, JobStatusFailed},
	JobStatusReadyForReview: {JobStatusCompleted, JobStatusFailed},
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusUploading, JobStatusProcessing, JobStatusReadyForReview, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no handler may move the job out of s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// AcceptsResult reports whether a worker result may still be applied.
// Everything past PROCESSING already saw its result.
func (s JobStatus) AcceptsResult() bool {
	return s == JobStatusUploading || s == JobStatusProcessing
}

// AcceptsProgress reports whether display fields may still be persisted.
func (s JobStatus) AcceptsProgress() bool {
	return s == JobStatusUploading || s == JobStatusProcessing
}

// CanTransitionTo reports whether s -> next is an edge of the state machine.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ResultAcceptingStatuses returns the statuses AcceptsResult is true for, as strings for SQL.
func ResultAcceptingStatuses() []string {
	return []string{string(JobStatusUploading), string(JobStatusProcessing)}
}

// ImageType is the hint sent to the worker about what the photo shows.
type ImageType string

const (
	ImageTypeFullBody   ImageType = "FULL_BODY"
	ImageTypeSingleItem ImageType = "SINGLE_ITEM"
)

// ParseImageType accepts the two hints case-insensitively. Empty defaults to SINGLE_ITEM.
func ParseImageType(raw string) (ImageType, bool) {
	switch ImageType(strings.ToUpper(strings.TrimSpace(raw))) {
	case "":
		return ImageTypeSingleItem, true
	case ImageTypeFullBody:
		return ImageTypeFullBody, true
	case ImageTypeSingleItem:
		return ImageTypeSingleItem, true
	}
	return "", false
}

// Step labels written to current_step.
const (
	StepQueued    = "queued"
	StepUploading = "uploading"
	StepCompleted = "completed"
	StepFailed    = "failed"
	StepConfirmed = "confirmed"
)
