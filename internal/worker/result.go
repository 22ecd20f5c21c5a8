package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"wardrobe/internal/models"
	"wardrobe/internal/objectstore"
	"wardrobe/internal/push"
	"wardrobe/internal/store"
	"wardrobe/internal/tasks"
	"wardrobe/pkg/categorizer"
)

// Stage names, also the first segment of every storage key.
const (
	StageBackgroundRemoved = "background-removed"
	StageSegmented         = "segmented"
	StageInpainted         = "inpainted"
	StageExpanded          = "expanded"
)

const defaultWorkerError = "image processing failed"

// HandleResult reconciles the terminal worker message for a job. It is the
// only path that moves a job out of PROCESSING.
//
// Returned errors go back to asynq, which retries and eventually archives
// the task. That happens for a missing job, and after local reconciliation
// failures once the job has been forced to FAILED.
func HandleResult(deps ResultDeps) asynq.HandlerFunc {
	r := &reconciler{deps: deps, now: nowFunc(deps.Now)}
	return func(ctx context.Context, t *asynq.Task) error {
		p, err := tasks.DecodeResult(t.Payload())
		if err != nil {
			log.WithFields(log.Fields{"task_id": taskID(t), "error": err}).Error("undecodable result message")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return r.reconcile(ctx, p, log.WithFields(log.Fields{"job_id": p.JobID, "task_id": taskID(t)}))
	}
}

type reconciler struct {
	deps ResultDeps
	now  func() time.Time
}

func (r *reconciler) reconcile(ctx context.Context, p tasks.ResultPayload, logger *log.Entry) error {
	job, err := r.deps.Jobs.GetJob(ctx, p.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Error("result for unknown job")
			return fmt.Errorf("result for job %d: %w", p.JobID, models.ErrNotFound)
		}
		return fmt.Errorf("load job %d: %w", p.JobID, err)
	}
	if !job.Status.AcceptsResult() {
		logger.WithField("status", job.Status).Info("duplicate or late result ignored")
		return nil
	}

	var outcome models.ResultOutcome
	if p.Success {
		outcome, err = r.buildSuccess(ctx, job, p, logger)
		if err != nil {
			return r.forceFail(ctx, job, err, logger)
		}
	} else {
		outcome = models.ResultOutcome{Success: false, ErrorMessage: p.Error}
		if outcome.ErrorMessage == "" {
			outcome.ErrorMessage = defaultWorkerError
		}
	}

	updated, err := r.deps.Jobs.ApplyResult(ctx, job.ID, outcome)
	if err != nil {
		if errors.Is(err, store.ErrTerminalState) {
			logger.Info("result lost race to a concurrent delivery, ignored")
			return nil
		}
		return r.forceFail(ctx, job, err, logger)
	}

	logger.WithFields(log.Fields{
		"status":          updated.Status,
		"segmented_items": updated.SegmentedItems.Len(),
		"expanded_items":  updated.ExpandedItems.Len(),
	}).Info("result applied")
	r.notify(ctx, updated, logger)
	return nil
}

// buildSuccess stores every staged output and item. Stage failures abort
// the whole result; item failures only drop that item.
func (r *reconciler) buildSuccess(ctx context.Context, job *models.ProcessingJob, p tasks.ResultPayload, logger *log.Entry) (models.ResultOutcome, error) {
	outcome := models.ResultOutcome{Success: true}

	stages := []struct {
		name string
		path string
		dst  **string
	}{
		{StageBackgroundRemoved, p.BackgroundRemovedPath, &outcome.BackgroundRemovedRef},
		{StageSegmented, p.SegmentedPath, &outcome.SegmentedRef},
		{StageInpainted, p.InpaintedPath, &outcome.InpaintedRef},
	}
	for _, st := range stages {
		if st.path == "" {
			continue
		}
		ref, err := r.copyToStorage(ctx, st.path, objectstore.Key(st.name, job.ID, objectstore.ExtOf(st.path)))
		if err != nil {
			return outcome, fmt.Errorf("stage %s: %w", st.name, err)
		}
		*st.dst = &ref
	}

	if p.SuggestedCategory != "" {
		cat, err := categorizer.Validate(p.SuggestedCategory)
		if err != nil {
			logger.WithError(err).Warn("ignoring invalid suggested category")
		} else {
			s := string(cat)
			outcome.SuggestedCategory = &s
		}
	}
	if p.ClassificationLabel != "" {
		label := p.ClassificationLabel
		outcome.ClassificationLabel = &label
	}
	if p.AreaPixels != nil {
		area := *p.AreaPixels
		outcome.AreaPixels = &area
	}

	if p.SegmentedItems != nil {
		outcome.SegmentedItems = r.storeItems(ctx, job.ID, StageSegmented, *p.SegmentedItems, logger)
	}
	if p.ExpandedItems != nil {
		outcome.ExpandedItems = r.storeItems(ctx, job.ID, StageExpanded, *p.ExpandedItems, logger)
	}
	return outcome, nil
}

func (r *reconciler) storeItems(ctx context.Context, jobID int64, stage string, items []tasks.ResultItem, logger *log.Entry) *models.ItemList {
	stored := make([]models.Item, 0, len(items))
	for i, it := range items {
		if it.Path == "" {
			logger.WithFields(log.Fields{"stage": stage, "index": i, "label": it.Label}).Warn("skipping item without path")
			continue
		}
		ref, err := r.copyToStorage(ctx, it.Path, objectstore.ItemKey(stage, jobID, i, objectstore.ExtOf(it.Path)))
		if err != nil {
			logger.WithFields(log.Fields{"stage": stage, "index": i, "label": it.Label, "error": err}).Warn("skipping item that failed to store")
			continue
		}
		stored = append(stored, models.Item{Label: it.Label, Ref: ref, AreaPixels: it.AreaPixels})
	}
	return models.NewItemList(stored)
}

func (r *reconciler) copyToStorage(ctx context.Context, path, key string) (string, error) {
	data, err := r.deps.Blobs.Read(ctx, path)
	if err != nil {
		return "", err
	}
	return r.deps.Blobs.Store(ctx, data, key)
}

// forceFail keeps a job from sitting in PROCESSING after a local error,
// then hands the error back so the broker applies its retry policy. A job
// that a concurrent delivery already settled keeps that outcome.
func (r *reconciler) forceFail(ctx context.Context, job *models.ProcessingJob, cause error, logger *log.Entry) error {
	logger.WithError(cause).Error("result reconciliation failed, forcing job to FAILED")
	failed, err := r.deps.Jobs.FailJob(ctx, job.ID, fmt.Sprintf("result reconciliation failed: %v", cause))
	switch {
	case err == nil:
		r.notify(ctx, failed, logger)
	case errors.Is(err, store.ErrTerminalState):
		logger.Info("job settled by a concurrent delivery, not forcing failure")
		return nil
	default:
		logger.WithError(err).Error("failed to force job to FAILED")
	}
	return fmt.Errorf("reconcile result for job %d: %w", job.ID, cause)
}

func (r *reconciler) notify(ctx context.Context, job *models.ProcessingJob, logger *log.Entry) {
	if r.deps.Notifier == nil {
		return
	}
	if err := r.deps.Notifier.Notify(ctx, job.UserID, push.Terminal(job, r.now())); err != nil {
		logger.WithError(err).Warn("failed to push terminal notification")
	}
}
