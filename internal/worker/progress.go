package worker

import (
	"context"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"wardrobe/internal/models"
	"wardrobe/internal/push"
	"wardrobe/internal/tasks"
)

// HandleProgress relays progress updates to the owner's push destination.
// It never fails the task: a lost progress update is cosmetic, and an
// error here would only cause redelivery storms.
func HandleProgress(deps ProgressDeps) asynq.HandlerFunc {
	now := nowFunc(deps.Now)
	return func(ctx context.Context, t *asynq.Task) error {
		p, err := tasks.DecodeProgress(t.Payload())
		if err != nil {
			log.WithFields(log.Fields{"task_id": taskID(t), "error": err}).Warn("dropping undecodable progress message")
			return nil
		}
		logger := log.WithFields(log.Fields{"job_id": p.JobID, "user_id": p.UserID, "step": p.Step, "percentage": p.Percentage})

		// Persisted display fields stay put once the job left PROCESSING;
		// the push below still goes out (display-only, see DESIGN.md).
		if deps.Jobs != nil {
			applied, err := deps.Jobs.RecordProgress(ctx, p.JobID, models.ProgressUpdate{Step: p.Step, Percentage: p.Percentage})
			switch {
			case err != nil:
				logger.WithError(err).Warn("failed to record progress")
			case !applied:
				logger.Debug("progress not recorded, job no longer in flight")
			}
		}

		if p.UserID <= 0 {
			logger.Warn("progress message without owner, cannot route push")
			return nil
		}
		status := p.Status
		if status == "" {
			status = string(models.JobStatusProcessing)
		}
		n := push.Notification{
			Type:       push.TypeProgress,
			JobID:      p.JobID,
			Status:     status,
			Step:       p.Step,
			Percentage: models.ClampPercentage(p.Percentage),
			Timestamp:  now().UnixMilli(),
		}
		if deps.Notifier == nil {
			return nil
		}
		if err := deps.Notifier.Notify(ctx, p.UserID, n); err != nil {
			logger.WithError(err).Warn("failed to push progress")
		}
		return nil
	}
}
