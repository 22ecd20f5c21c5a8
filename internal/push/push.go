// Package push delivers best-effort job notifications to a user's live
// destinations. Nothing here is persisted or replayed.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wardrobe/internal/models"
)

// Notification types.
const (
	TypeProgress = "progress"
	TypeComplete = "complete"
	TypeFailure  = "failure"
)

// Notification mirrors a progress update plus a timestamp.
type Notification struct {
	Type       string `json:"type"`
	JobID      int64  `json:"job_id"`
	Status     string `json:"status"`
	Step       string `json:"step"`
	Percentage int    `json:"percentage"`
	Error      string `json:"error,omitempty"`
	Timestamp  int64  `json:"timestamp"` // epoch millis
}

// Notifier sends a notification to every live destination of userID.
type Notifier interface {
	Notify(ctx context.Context, userID int64, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID int64, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, userID int64, n Notification) error {
	return f(ctx, userID, n)
}

// Terminal builds the complete/failure notification for a job that just finished.
func Terminal(job *models.ProcessingJob, now time.Time) Notification {
	n := Notification{
		Type:       TypeComplete,
		JobID:      job.ID,
		Status:     string(job.Status),
		Step:       job.CurrentStep,
		Percentage: job.ProgressPercentage,
		Timestamp:  now.UnixMilli(),
	}
	if job.Status == models.JobStatusFailed {
		n.Type = TypeFailure
		if job.ErrorMessage != nil {
			n.Error = *job.ErrorMessage
		}
	}
	return n
}

// Encode marshals a notification for the wire.
func Encode(n Notification) ([]byte, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return b, nil
}

// Decode parses a notification from the wire.
func Decode(b []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(b, &n); err != nil {
		return n, fmt.Errorf("unmarshal notification: %w", err)
	}
	if n.JobID == 0 || n.Type == "" {
		return n, errors.New("unmarshal notification: missing job_id or type")
	}
	return n, nil
}
