package tasks

// Defines constants for task types and queues used in Asynq.

const (
	// TypeProcessingRequest is published by us and consumed by the image worker.
	TypeProcessingRequest = "processing:request"
	// TypeProcessingProgress is published by the image worker, many per job.
	TypeProcessingProgress = "processing:progress"
	// TypeProcessingResult is published by the image worker, one per job.
	TypeProcessingResult = "processing:result"
)

// Queue names. All three are durable Redis lists owned by asynq.
const (
	QueueProcessingRequest  = "processing.request"
	QueueProcessingProgress = "processing.progress"
	QueueProcessingResult   = "processing.result"
)
