package generation

import (
	"context"
	"time"
)

// Repository persists generation jobs.
type Repository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	// ClaimNextJob moves the oldest available queued job to processing and
	// increments its attempt counter. It returns nil when nothing is available.
	ClaimNextJob(ctx context.Context, now time.Time) (*Job, error)
	CompleteJob(ctx context.Context, id, resultMediaID string, at time.Time) error
	FailJob(ctx context.Context, id, message string, at time.Time) error
	RequeueJob(ctx context.Context, id, message string, availableAt time.Time) error
	// FailStaleJobs fails jobs that have been processing since before cutoff.
	FailStaleJobs(ctx context.Context, cutoff time.Time, message string) (int64, error)
	CountQueuedJobs(ctx context.Context) (int64, error)
}

// Engine renders images.
type Engine interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Output, error)
}

// MediaStore keeps generated images and hands out links to them.
type MediaStore interface {
	Put(ctx context.Context, media *Media) error
	Get(ctx context.Context, id string) (*Media, error)
	URL(ctx context.Context, id string) (string, error)
}
