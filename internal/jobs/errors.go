package jobs

import "errors"

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrResultNotReady  = errors.New("result not ready")
	ErrJobCancelled    = errors.New("job was cancelled")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidPriority = errors.New("priority must be between 1 and 10")
	ErrQueueFull       = errors.New("job queue is full")
	ErrStopped         = errors.New("job manager stopped")
)
