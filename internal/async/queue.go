package async

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks for one file to be processed on behalf of an owner.
type Job struct {
	OwnerID     string
	Path        string
	Force       bool // process even if the owner already saved this content
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Handler processes a single job. Errors are logged by the queue.
type Handler func(ctx context.Context, job Job) error
