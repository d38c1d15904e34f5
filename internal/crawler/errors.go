package crawler

import "errors"

// Sentinel errors shared by stores, queue clients and the orchestration core.
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrTaskExists     = errors.New("task already exists for host")
	ErrNoSeeds        = errors.New("source has no seed urls")
	ErrQueueNotFound  = errors.New("queue not found")
	ErrBatchTooLarge  = errors.New("queue batch exceeds maximum size")
	ErrWorkerRejected = errors.New("worker rejected request")
)
