package tasks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// ProcessingRequestPayload is the body of a processing:request task.
type ProcessingRequestPayload struct {
	JobID            int64  `json:"job_id"`
	UserID           int64  `json:"user_id"`
	Image            []byte `json:"image"`
	OriginalFilename string `json:"original_filename"`
	ImageType        string `json:"image_type"`
	RetryCount       int    `json:"retry_count"`
	CreatedAt        int64  `json:"created_at"` // epoch millis
}

// Created returns CreatedAt as a time.
func (p ProcessingRequestPayload) Created() time.Time {
	return time.UnixMilli(p.CreatedAt)
}

// Stale reports whether the request is older than maxAge at now.
// A non-positive maxAge disables the check.
func (p ProcessingRequestPayload) Stale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 || p.CreatedAt == 0 {
		return false
	}
	return now.Sub(p.Created()) > maxAge
}

// ProgressPayload is the body of a processing:progress task.
type ProgressPayload struct {
	JobID      int64  `json:"job_id"`
	UserID     int64  `json:"user_id"`
	Status     string `json:"status"`
	Step       string `json:"step"`
	Percentage int    `json:"percentage"`
}

// ResultItem is one detected garment the worker left on the shared filesystem.
type ResultItem struct {
	Label      string `json:"label"`
	Path       string `json:"path"`
	AreaPixels int64  `json:"area_pixels"`
}

// ResultPayload is the body of a processing:result task.
// Item lists are pointers so "absent" and "empty" stay distinct.
type ResultPayload struct {
	JobID                 int64         `json:"job_id"`
	Success               bool          `json:"success"`
	Error                 string        `json:"error,omitempty"`
	BackgroundRemovedPath string        `json:"background_removed_path,omitempty"`
	SegmentedPath         string        `json:"segmented_path,omitempty"`
	InpaintedPath         string        `json:"inpainted_path,omitempty"`
	SuggestedCategory     string        `json:"suggested_category,omitempty"`
	ClassificationLabel   string        `json:"classification_label,omitempty"`
	AreaPixels            *int64        `json:"area_pixels,omitempty"`
	SegmentedItems        *[]ResultItem `json:"segmented_items,omitempty"`
	ExpandedItems         *[]ResultItem `json:"expanded_items,omitempty"`
}

// NewProcessingRequestTask encodes a request task.
func NewProcessingRequestTask(p ProcessingRequestPayload, opts ...asynq.Option) (*asynq.Task, error) {
	return newTask(TypeProcessingRequest, p, opts...)
}

// NewProgressTask encodes a progress task. Used by tests and local tooling that stand in for the worker.
func NewProgressTask(p ProgressPayload, opts ...asynq.Option) (*asynq.Task, error) {
	return newTask(TypeProcessingProgress, p, opts...)
}

// NewResultTask encodes a result task.
func NewResultTask(p ResultPayload, opts ...asynq.Option) (*asynq.Task, error) {
	return newTask(TypeProcessingResult, p, opts...)
}

func newTask(typename string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typename, err)
	}
	return asynq.NewTask(typename, b, opts...), nil
}

// DecodeProgress parses a progress task body.
func DecodeProgress(b []byte) (ProgressPayload, error) {
	var p ProgressPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("decode progress payload: %w", err)
	}
	if p.JobID <= 0 {
		return p, fmt.Errorf("decode progress payload: missing job_id")
	}
	return p, nil
}

// DecodeResult parses a result task body.
func DecodeResult(b []byte) (ResultPayload, error) {
	var p ResultPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("decode result payload: %w", err)
	}
	if p.JobID <= 0 {
		return p, fmt.Errorf("decode result payload: missing job_id")
	}
	p.SuggestedCategory = strings.TrimSpace(p.SuggestedCategory)
	return p, nil
}

// DecodeProcessingRequest parses a request task body.
func DecodeProcessingRequest(b []byte) (ProcessingRequestPayload, error) {
	var p ProcessingRequestPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("decode processing request payload: %w", err)
	}
	return p, nil
}

// RequestTaskID is the broker-level id of one publish attempt for a job.
func RequestTaskID(jobID int64, retry int) string {
	return fmt.Sprintf("job-%d-attempt-%d", jobID, retry)
}
