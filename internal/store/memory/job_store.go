// Package memory is a mutex-guarded in-process JobStore with the same guard
// semantics as the Postgres store. It backs tests and single-process runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wardrobe/internal/models"
	"wardrobe/internal/store"
)

// JobStore keeps jobs in a map. Returned jobs are copies.
type JobStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*models.ProcessingJob
	nowFn  func() time.Time
}

// NewJobStore returns an empty store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[int64]*models.ProcessingJob), nowFn: time.Now}
}

var _ store.JobStore = (*JobStore)(nil)

// Put inserts or replaces a job as-is, keeping its ID. Useful for seeding.
func (s *JobStore) Put(job *models.ProcessingJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneJob(job)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.nowFn().UTC()
		c.UpdatedAt = c.CreatedAt
	}
	s.jobs[c.ID] = c
	if c.ID > s.nextID {
		s.nextID = c.ID
	}
}

func (s *JobStore) CreateJob(_ context.Context, job *models.ProcessingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := s.nowFn().UTC()
	job.ID = s.nextID
	job.CreatedAt = now
	job.UpdatedAt = now
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *JobStore) GetJob(_ context.Context, id int64) (*models.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *JobStore) ListJobs(_ context.Context, filter store.JobFilter, limit, offset int) ([]*models.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ProcessingJob
	for _, job := range s.jobs {
		if filter.UserID != 0 && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		out = append(out, cloneJob(job))
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *JobStore) MarkProcessing(_ context.Context, id int64, originalRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status != models.JobStatusUploading {
		return fmt.Errorf("job %d is not uploading: %w", id, store.ErrConflict)
	}
	job.Status = models.JobStatusProcessing
	job.CurrentStep = models.StepQueued
	if job.OriginalImageRef == nil && originalRef != "" {
		job.OriginalImageRef = strPtr(originalRef)
	}
	job.UpdatedAt = s.nowFn().UTC()
	return nil
}

func (s *JobStore) RecordProgress(_ context.Context, id int64, update models.ProgressUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || !job.Status.AcceptsProgress() {
		return false, nil
	}
	job.CurrentStep = update.Step
	job.ProgressPercentage = models.ClampPercentage(update.Percentage)
	job.UpdatedAt = s.nowFn().UTC()
	return true, nil
}

func (s *JobStore) ApplyResult(_ context.Context, id int64, outcome models.ResultOutcome) (*models.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("apply result %d: %w", id, store.ErrNotFound)
	}
	if !job.Status.AcceptsResult() {
		return nil, fmt.Errorf("apply result %d: %w", id, store.ErrTerminalState)
	}

	job.Status = outcome.Status()
	if outcome.Success {
		job.CurrentStep = models.StepCompleted
		job.ProgressPercentage = 100
		job.ErrorMessage = nil
	} else {
		job.CurrentStep = models.StepFailed
		job.ProgressPercentage = 0
		job.ErrorMessage = strPtr(outcome.ErrorMessage)
	}
	job.BackgroundRemovedRef = firstSet(job.BackgroundRemovedRef, outcome.BackgroundRemovedRef)
	job.SegmentedRef = firstSet(job.SegmentedRef, outcome.SegmentedRef)
	job.InpaintedRef = firstSet(job.InpaintedRef, outcome.InpaintedRef)
	if outcome.SuggestedCategory != nil {
		job.SuggestedCategory = strPtr(*outcome.SuggestedCategory)
	}
	if outcome.ClassificationLabel != nil {
		job.ClassificationLabel = strPtr(*outcome.ClassificationLabel)
	}
	if outcome.AreaPixels != nil {
		v := *outcome.AreaPixels
		job.AreaPixels = &v
	}
	if outcome.SegmentedItems != nil {
		job.SegmentedItems = cloneList(outcome.SegmentedItems)
	}
	if outcome.ExpandedItems != nil {
		job.ExpandedItems = cloneList(outcome.ExpandedItems)
	}
	job.UpdatedAt = s.nowFn().UTC()
	return cloneJob(job), nil
}

func (s *JobStore) FailJob(_ context.Context, id int64, message string) (*models.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("fail job %d: %w", id, store.ErrNotFound)
	}
	if !job.Status.AcceptsResult() {
		return nil, fmt.Errorf("fail job %d: %w", id, store.ErrTerminalState)
	}
	job.Status = models.JobStatusFailed
	job.CurrentStep = models.StepFailed
	job.ProgressPercentage = 0
	job.ErrorMessage = strPtr(message)
	job.UpdatedAt = s.nowFn().UTC()
	return cloneJob(job), nil
}

func (s *JobStore) ConfirmJob(_ context.Context, id int64, selectedRef string) (*models.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("confirm job %d: %w", id, store.ErrNotFound)
	}
	if !job.Status.CanTransitionTo(models.JobStatusCompleted) {
		return nil, fmt.Errorf("confirm job %d: %w", id, store.ErrConflict)
	}
	job.Status = models.JobStatusCompleted
	job.CurrentStep = models.StepConfirmed
	job.Confirmed = true
	job.SelectedImageRef = strPtr(selectedRef)
	job.UpdatedAt = s.nowFn().UTC()
	return cloneJob(job), nil
}

func (s *JobStore) Ping(context.Context) error { return nil }

func firstSet(current, next *string) *string {
	if current != nil {
		return current
	}
	if next == nil {
		return nil
	}
	return strPtr(*next)
}

func strPtr(s string) *string { return &s }

func cloneList(l *models.ItemList) *models.ItemList {
	if l == nil {
		return nil
	}
	items := make([]models.Item, len(l.Items))
	copy(items, l.Items)
	return &models.ItemList{Version: l.Version, Items: items}
}

func cloneJob(j *models.ProcessingJob) *models.ProcessingJob {
	c := *j
	for _, p := range []**string{
		&c.ErrorMessage, &c.OriginalImageRef, &c.BackgroundRemovedRef, &c.SegmentedRef,
		&c.InpaintedRef, &c.SelectedImageRef, &c.SuggestedCategory, &c.ClassificationLabel,
	} {
		if *p != nil {
			*p = strPtr(**p)
		}
	}
	if c.AreaPixels != nil {
		v := *c.AreaPixels
		c.AreaPixels = &v
	}
	c.SegmentedItems = cloneList(c.SegmentedItems)
	c.ExpandedItems = cloneList(c.ExpandedItems)
	return &c
}
