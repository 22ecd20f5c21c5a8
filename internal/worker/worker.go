// Package worker holds the asynq handlers that consume what the image worker
// publishes: progress updates and the terminal result for each job.
package worker

import (
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"wardrobe/internal/push"
	"wardrobe/internal/store"
	"wardrobe/internal/tasks"
)

// ProgressDeps are the collaborators of the progress relay.
type ProgressDeps struct {
	Jobs     store.JobStore // optional; nil disables persisting display fields
	Notifier push.Notifier
	Now      func() time.Time
}

// ResultDeps are the collaborators of the result reconciler.
type ResultDeps struct {
	Jobs     store.JobStore
	Blobs    store.BlobStore
	Notifier push.Notifier
	Now      func() time.Time
}

// RegisterHandlers registers both consumers on mux.
func RegisterHandlers(mux *asynq.ServeMux, progress ProgressDeps, result ResultDeps) {
	log.Printf("Registering progress handler (%s)", tasks.TypeProcessingProgress)
	mux.HandleFunc(tasks.TypeProcessingProgress, HandleProgress(progress))
	log.Printf("Registering result handler (%s)", tasks.TypeProcessingResult)
	mux.HandleFunc(tasks.TypeProcessingResult, HandleResult(result))
}

// Queues returns the queue priorities the consumers listen on.
// Results outrank progress so terminal state lands quickly.
func Queues() map[string]int {
	return map[string]int{
		tasks.QueueProcessingResult:   6,
		tasks.QueueProcessingProgress: 3,
	}
}

func taskID(t *asynq.Task) string {
	if rw := t.ResultWriter(); rw != nil {
		return rw.TaskID()
	}
	return ""
}

func nowFunc(fn func() time.Time) func() time.Time {
	if fn == nil {
		return time.Now
	}
	return fn
}
