package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/document"
)

// ErrQueueClosed is returned by Enqueue after Shutdown started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document waiting to be processed.
type Job struct {
	Path         string
	HashHex      string
	Deduplicated bool // content already processed; skipped unless Force
	Force        bool // process even if deduplicated
	SubmittedAt  time.Time
	TraceID      string
}

// Outcome is reported once per job.
type Outcome struct {
	Job      Job
	Status   constants.JobStatus
	Document *document.ProcessedDocument
	Err      error
	Elapsed  time.Duration
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
